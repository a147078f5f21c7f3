package models

// Mail письмо, которое Notifier передаёт на доставку.
type Mail struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
