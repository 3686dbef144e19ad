package database

// Column lists shared by the record store. Order matches the scan helpers in
// internal/supabase.
const (
	SessionColumns = `id, brand_name, created_at`

	UserAssetColumns = `id, session_id, asset_type, storage_path, filename, mime_type, file_size, created_at`

	CompetitorAdColumns = `id, session_id, ad_id, page_id, page_name, ad_text, delivery_start, delivery_end,
		source_image_url, is_active, days_running, winner_score, storage_path, created_at`

	GeneratedAssetColumns = `id, run_id, session_id, concept_index, visual_prompt, hook, placeholder,
		latency_ms, storage_path, created_at`

	GenerationRunColumns = `id, session_id, params, style_directive, degraded_style, rate_limited,
		asset_count, total_latency_ms, created_at`
)

const (
	InsertSession = `
		INSERT INTO sessions (id, brand_name)
		VALUES ($1, $2)
		RETURNING ` + SessionColumns

	SelectSession = `SELECT ` + SessionColumns + ` FROM sessions WHERE id = $1`

	InsertUserAsset = `
		INSERT INTO user_assets (id, session_id, asset_type, storage_path, filename, mime_type, file_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + UserAssetColumns

	SelectUserAssets = `
		SELECT ` + UserAssetColumns + `
		FROM user_assets
		WHERE session_id = $1
		ORDER BY created_at ASC`

	// InsertCompetitorAd returns no row when (session_id, ad_id) already exists.
	InsertCompetitorAd = `
		INSERT INTO competitor_ads (id, session_id, ad_id, page_id, page_name, ad_text, delivery_start,
			delivery_end, source_image_url, is_active, days_running, winner_score, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (session_id, ad_id) DO NOTHING
		RETURNING ` + CompetitorAdColumns

	SelectCompetitorAd = `
		SELECT ` + CompetitorAdColumns + `
		FROM competitor_ads
		WHERE session_id = $1 AND ad_id = $2`

	SelectCompetitorAds = `
		SELECT ` + CompetitorAdColumns + `
		FROM competitor_ads
		WHERE session_id = $1
		ORDER BY winner_score DESC, created_at ASC`

	InsertGeneratedAsset = `
		INSERT INTO generated_assets (id, run_id, session_id, concept_index, visual_prompt, hook,
			placeholder, latency_ms, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + GeneratedAssetColumns

	SelectGeneratedAsset = `SELECT ` + GeneratedAssetColumns + ` FROM generated_assets WHERE id = $1`

	SelectRunAssets = `
		SELECT ` + GeneratedAssetColumns + `
		FROM generated_assets
		WHERE run_id = ANY($1::uuid[])
		ORDER BY concept_index ASC`

	InsertGenerationRun = `
		INSERT INTO generation_runs (id, session_id, params, style_directive, degraded_style, rate_limited,
			asset_count, total_latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + GenerationRunColumns

	SelectGenerationRuns = `
		SELECT ` + GenerationRunColumns + `
		FROM generation_runs
		WHERE session_id = $1
		ORDER BY created_at DESC`

	NotifyChannel = `SELECT pg_notify($1, $2)`
)
