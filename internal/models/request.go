package models

type AnalyzeCompetitorsRequest struct {
	SessionID string `json:"session_id" binding:"required" example:"6c1f0a3e-8c4b-4d55-9d43-0d7f1a2b3c4d"`
	// Input is either an Ad Library page URL or a plain keyword query.
	Input        string `json:"input" binding:"required" example:"https://www.facebook.com/ads/library/?view_all_page_id=123456"`
	Country      string `json:"country,omitempty" example:"US"`
	ActiveStatus string `json:"active_status,omitempty" example:"all"`
	MediaType    string `json:"media_type,omitempty" example:"image"`
}

type GenerateRequest struct {
	SessionID           string `json:"session_id" binding:"required"`
	BrandName           string `json:"brand_name" binding:"required" example:"Acme Coffee"`
	ProductDescription  string `json:"product_description" binding:"required" example:"Cold brew concentrate in a glass bottle"`
	CustomerDescription string `json:"customer_description,omitempty" example:"Busy professionals who want cafe coffee at home"`
	NumConcepts         int    `json:"num_concepts,omitempty" example:"5"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
