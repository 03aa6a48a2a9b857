package bot

// All user-facing bot messages in one place.

// ── /start & /help ──────────────────────────────────────────────────

const msgStart = `<b>Вітаю в Lights Watch!</b>

Я слідкую за станом електроенергії у вашому домі та повідомляю, коли світло зникає або повертається.

Є два джерела даних:
1. Пінги з вашого пристрою (роутер, Raspberry Pi тощо) — ваше унікальне посилання нижче
2. Дані про відключення з сайту обленерго — налаштуйте адресу через /address

<b>Ваше посилання для пінгу:</b>
<code>%s/api/ping/%s</code>

Налаштуйте пристрій пінгувати його кожні 1-2 хвилини.

/status — поточний стан
/address — вказати адресу
/check — перевірити відключення за адресою
/mute — вимкнути сповіщення
/unmute — увімкнути сповіщення
/help — довідка`

const msgHelp = `<b>Як це працює:</b>

1. Якщо у вас є пристрій — він пінгує ваше посилання кожні 1-2 хвилини. Немає пінгів понад 3 хвилини — світла немає.
2. Якщо пристрою немає — вкажіть адресу через /address, і я перевірятиму дані обленерго кожні 15 хвилин.
3. Якщо є і пристрій, і адреса — стан визначають пінги, а дані обленерго додаються до сповіщень як довідка.

<b>Команди:</b>
/status — поточний стан світла
/address — вказати чи змінити адресу
/check — перевірити відключення зараз
/probe — пінгувати ваш роутер напряму, без окремого пристрою
/mute — призупинити сповіщення
/unmute — відновити сповіщення
/cancel — скасувати поточну операцію`

// ── Generic / errors ────────────────────────────────────────────────

const (
	msgError     = "Щось пішло не так. Спробуйте пізніше."
	msgCancelled = "Операцію скасовано."
)

// ── /status ─────────────────────────────────────────────────────────

const (
	msgStatusOn       = "🟢 <b>Світло є</b> (з %s)"
	msgStatusOff      = "🔴 <b>Світла немає</b> (з %s)"
	msgStatusPrev     = "\nПопередній стан тривав %s"
	msgStatusMuted    = "\n\n🔕 Сповіщення вимкнено (/unmute щоб увімкнути)"
	msgStatusAddress  = "\n📍 Адреса: %s"
	msgStatusNoSignal = "У мене поки немає даних про ваш стан.\n\nНалаштуйте пінги (/start) або вкажіть адресу (/address)."
)

// ── Notifications (rendered from queue messages) ────────────────────

const (
	msgNotifyOn  = "🟢 <b>Світло з'явилося!</b>\n🕓 %s • Темрява тривала %s"
	msgNotifyOff = "🔴 <b>Світло зникло!</b>\n🕓 %s • Світло було %s"
)

// ── /address wizard ─────────────────────────────────────────────────

const (
	msgAskCity        = "Вкажіть ваше місто:"
	msgAskStreet      = "Місто: <b>%s</b>\n\nТепер вкажіть вулицю:"
	msgAskHouse       = "Вулиця: <b>%s</b>\n\nВкажіть номер будинку (або натисніть «%s», щоб стежити за всією вулицею):"
	msgCityNotFound   = "Не знайшов такого міста. Спробуйте ще раз:"
	msgStreetNotFound = "Не знайшов такої вулиці. Спробуйте ще раз:"
	msgPickSuggestion = "Уточніть, будь ласка — оберіть варіант із клавіатури або введіть точнішу назву:"
	msgAddressSaved   = "✅ Адресу збережено: <b>%s</b>\n\nПеревіряю відключення..."
	msgGazetteerError = "Не вдалося отримати довідник адрес. Спробуйте пізніше."

	btnWholeStreet = "Вся вулиця"
)

// ── /check ──────────────────────────────────────────────────────────

const msgNoAddress = "Спершу вкажіть адресу через /address."

// ── /probe ──────────────────────────────────────────────────────────

const (
	msgProbeUsage = `Вкажіть IP або хост вашого роутера, і я пінгуватиму його сам — окремий пристрій не потрібен:
<code>/probe 192.168.1.1</code>

Вимкнути: <code>/probe off</code>`
	msgProbeSet     = "📡 Ціль збережено: <b>%s</b>\nЯ перевірятиму її щохвилини."
	msgProbeCleared = "📡 Перевірку пінгом вимкнено."
)

// ── /mute & /unmute ─────────────────────────────────────────────────

const (
	msgMuted   = "🔕 Сповіщення вимкнено. Ваші дані збережено — /unmute поверне все як було."
	msgUnmuted = "🔔 Сповіщення увімкнено."
)

// ── Menu buttons ────────────────────────────────────────────────────

const (
	menuBtnStatus  = "📊 Статус"
	menuBtnAddress = "📍 Адреса"
	menuBtnCheck   = "🔌 Відключення"
	menuBtnMute    = "🔕 Вимкнути"
	menuBtnUnmute  = "🔔 Увімкнути"
)
