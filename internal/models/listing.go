package models

// Listing is a marketplace entry for one plant. CareDetails holds the
// AI-authored care payload as stored: JSON, legacy text, or empty.
type Listing struct {
	ID          string   `json:"id"`
	Species     string   `json:"species"`
	CareDetails string   `json:"care_details"`
	CareTips    []string `json:"care_tips"`
}
