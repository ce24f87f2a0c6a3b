package user

// Preferences are the user's channel opt-ins.
type Preferences struct {
	EmailEnabled bool `json:"email_enabled"`
	PushEnabled  bool `json:"push_enabled"`
}

// Contact is where deliveries go. TelegramChatID is 0 when the user never linked a chat.
type Contact struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

type Profile struct {
	Contact
	Preferences Preferences `json:"preferences"`
}
