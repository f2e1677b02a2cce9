package models

// Setting keys consumed by this service. The settings table itself is owned
// by the configuration collaborator; this core only reads it.
const (
	SettingAlertThreshold   = "traffic_alert_threshold" // percent, e.g. "200"
	SettingTelegramBotToken = "telegram_bot_token"
	SettingTelegramChatID   = "telegram_chat_id"
)

// Setting is a single key/value configuration row.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
