package store

// SQL query constants organized by entity.
// All SQL lives here — PostgresStore methods reference these constants.

// Price sample queries.
const (
	queryInsertSample = `
		INSERT INTO price_samples (chain, price, timestamp)
		VALUES (@chain, @price, @timestamp)
		RETURNING id`

	queryLatestSampleBetween = `
		SELECT id, chain, price::text, timestamp
		FROM price_samples
		WHERE chain = $1
		  AND timestamp > $2
		  AND timestamp < $3
		ORDER BY timestamp DESC
		LIMIT 1`

	queryHourlyMaxPrices = `
		SELECT date_trunc('hour', timestamp) AS hour,
			chain,
			MAX(price)::text AS highest
		FROM price_samples
		WHERE timestamp > $1
		GROUP BY hour, chain
		ORDER BY hour ASC, chain ASC`
)

// Alert queries.
const (
	queryGetAlert = `
		SELECT id, chain, target_price::text, email, created_at, updated_at
		FROM alerts
		WHERE chain = $1 AND email = $2`

	queryCreateAlert = `
		INSERT INTO alerts (chain, target_price, email, created_at, updated_at)
		VALUES (@chain, @target_price, @email, now(), now())
		RETURNING id, created_at, updated_at`

	queryUpdateAlertPrice = `
		UPDATE alerts SET
			target_price = $2,
			updated_at = now()
		WHERE id = $1`

	queryListTriggeredAlerts = `
		SELECT id, chain, target_price::text, email, created_at, updated_at
		FROM alerts
		WHERE chain = $1 AND target_price <= $2
		ORDER BY created_at ASC`
)
