package outage

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
)

// sourceTimeLayout is how the utility formats timestamps ("10:00 01.01.2025").
const sourceTimeLayout = "15:04 02.01.2006"

const (
	msgUnknown = "невідомо"

	msgHouseOutage = "🔴 Відключення за адресою %s: %s\nПочаток: %s\nВідновлення: %s"
	// Street-level inference is explicitly labeled as not house-specific.
	msgStreetOutage = "🔴 Відключення на вулиці %s (рівень вулиці, будинок не уточнено): %s\nПочаток: %s\nВідновлення: %s"
	msgNoOutage     = "🟢 За адресою %s відключень не зафіксовано"
	msgSourceStamp  = "\nДані станом на %s"
	msgFetchFailed  = "⚠️ Не вдалося отримати дані про відключення"
)

// Interpret decides whether the subscriber's specific address is currently
// without power, using a three-tier policy: exact/resolved house record, then
// street-level aggregate inference, then "no data means no outage".
func Interpret(resp *StreetOutage, city, street, house string) Summary {
	addr := formatAddr(city, street, house)

	// Tier 1: a resolved house record naming an outage kind always wins.
	if house != "" {
		if key, ok := matchHouse(resp.Houses, house); ok {
			if rec := resp.Houses[key]; rec.Actionable() {
				return Summary{
					InferredOff: true,
					Message: fmt.Sprintf(msgHouseOutage, addr, reason(rec),
						orUnknown(rec.StartDate), orUnknown(rec.EndDate)),
					SourceUpdated: resp.UpdatedAt,
				}
			}
		}
	}

	// Tier 2: the street flag alone is unreliable — it needs at least one
	// active entry on the street to back it up.
	if resp.StreetFlag {
		if s, ok := inferStreet(resp, street); ok {
			return s
		}
	}

	// Tier 3: no data means no outage.
	msg := fmt.Sprintf(msgNoOutage, addr)
	if resp.UpdatedAt != "" {
		msg += fmt.Sprintf(msgSourceStamp, resp.UpdatedAt)
	}
	return Summary{InferredOff: false, Message: msg, SourceUpdated: resp.UpdatedAt}
}

// FailedSummary is the neutral verdict for a fetch failure.
func FailedSummary() Summary {
	return Summary{InferredOff: false, Message: msgFetchFailed, Failed: true}
}

// inferStreet synthesizes a street-level summary from the active entries:
// union of distinct reasons, earliest start, latest end.
func inferStreet(resp *StreetOutage, street string) (Summary, bool) {
	var (
		reasons          []string
		seen             = map[string]bool{}
		earliest, latest time.Time
		startStr, endStr string
	)
	for _, rec := range resp.Houses {
		if !rec.Active() {
			continue
		}
		if r := reason(rec); r != "" && !seen[r] {
			seen[r] = true
			reasons = append(reasons, r)
		}
		if rec.StartDate != "" {
			t := parseSourceTime(rec.StartDate)
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
				startStr = rec.StartDate
			}
		}
		if rec.EndDate != "" {
			t := parseSourceTime(rec.EndDate)
			if latest.IsZero() || t.After(latest) {
				latest = t
				endStr = rec.EndDate
			}
		}
	}
	if len(reasons) == 0 && startStr == "" && endStr == "" {
		return Summary{}, false
	}
	sort.Strings(reasons)
	return Summary{
		InferredOff: true,
		Message: fmt.Sprintf(msgStreetOutage, street, orUnknown(strings.Join(reasons, ", ")),
			orUnknown(startStr), orUnknown(endStr)),
		SourceUpdated: resp.UpdatedAt,
	}, true
}

// matchHouse resolves the target house number against the source's keys:
// exact match, then case-insensitive, then numeric proximity on leading
// digits, then the first key.
func matchHouse(houses map[string]HouseRecord, target string) (string, bool) {
	if len(houses) == 0 {
		return "", false
	}
	if _, ok := houses[target]; ok {
		return target, true
	}

	keys := make([]string, 0, len(houses))
	for k := range houses {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	norm := strings.ToLower(strings.TrimSpace(target))
	for _, k := range keys {
		if strings.ToLower(strings.TrimSpace(k)) == norm {
			return k, true
		}
	}

	if n, ok := leadingNumber(target); ok {
		best, bestDiff := "", -1
		for _, k := range keys {
			kn, ok := leadingNumber(k)
			if !ok {
				continue
			}
			diff := n - kn
			if diff < 0 {
				diff = -diff
			}
			if bestDiff < 0 || diff < bestDiff {
				best, bestDiff = k, diff
			}
		}
		if best != "" {
			return best, true
		}
	}

	return keys[0], true
}

// leadingNumber extracts the leading digits of a house-number-like string.
func leadingNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseSourceTime parses the source's timestamp format. A malformed value
// falls back to now — a slightly off estimate beats blocking reconciliation.
func parseSourceTime(s string) time.Time {
	t, err := time.Parse(sourceTimeLayout, s)
	if err != nil {
		log.Printf("[outage] unparseable source time %q: %v", s, err)
		return time.Now()
	}
	return t
}

func reason(rec HouseRecord) string {
	if rec.SubType != "" {
		return rec.SubType
	}
	return rec.Type
}

func orUnknown(s string) string {
	if s == "" {
		return msgUnknown
	}
	return s
}

func formatAddr(city, street, house string) string {
	if house == "" {
		return fmt.Sprintf("%s, %s", city, street)
	}
	return fmt.Sprintf("%s, %s, %s", city, street, house)
}
