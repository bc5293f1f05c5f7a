package model

// DocumentSequence is a named monotonic counter, e.g. "order:2026" or
// "batch:<manufacturer>:2026". Rows are created on first use.
type DocumentSequence struct {
	Scope        string `gorm:"type:varchar(120);primaryKey" json:"scope"`
	CurrentValue int64  `gorm:"not null;default:0" json:"current_value"`
}
