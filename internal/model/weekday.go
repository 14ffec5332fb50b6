package model

// Weekday ids follow cron numbering: 0 is Sunday.
type Weekday struct {
	ID  int    `json:"id"`
	Day string `json:"day"`
}
