package models

// Panel is a demographic or persona group whose survey answers are being guessed.
type Panel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}
