package postgres

// SQL for the visit log and the per-content accumulators.

const visitColumns = `
	id, content_ref, actor_ref, session_id, path, occurred_at,
	ip_address, user_agent, referrer_url,
	country, region, city, device_class, browser, os, referrer_source,
	duration_seconds, scroll_depth_percent, ingest_seq`

const (
	// querySaveVisit appends one visit. RETURNING retrieves the
	// auto-generated ingest_seq for cursor tracking.
	querySaveVisit = `
		INSERT INTO visits (
			id, content_ref, actor_ref, session_id, path, occurred_at,
			ip_address, user_agent, referrer_url,
			country, region, city, device_class, browser, os, referrer_source,
			duration_seconds, scroll_depth_percent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ingest_seq
	`

	// queryAttachEngagement fills the engagement fields of the most recent
	// open visit (duration still zero) for one session+path. The inner
	// select pins the mutation to exactly one row, so close-outs for
	// different visits never contend.
	queryAttachEngagement = `
		UPDATE visits
		SET duration_seconds = $3, scroll_depth_percent = $4
		WHERE ingest_seq = (
			SELECT ingest_seq FROM visits
			WHERE session_id = $1 AND path = $2 AND duration_seconds = 0
			ORDER BY occurred_at DESC, ingest_seq DESC
			LIMIT 1
		)
		RETURNING` + visitColumns + `
	`

	// queryRetrieveVisitsAfterCursor pages a time range in strict total
	// order. Used by the rollup engine's scan loop.
	queryRetrieveVisitsAfterCursor = `
		SELECT` + visitColumns + `
		FROM visits
		WHERE ingest_seq > $1
		  AND occurred_at >= $2
		  AND occurred_at < $3
		ORDER BY ingest_seq ASC
		LIMIT $4
	`

	// queryRetrieveVisitsSince serves the trailing real-time window.
	queryRetrieveVisitsSince = `
		SELECT` + visitColumns + `
		FROM visits
		WHERE occurred_at >= $1
		ORDER BY ingest_seq ASC
	`

	queryCountVisitsBetween = `
		SELECT COUNT(*) FROM visits
		WHERE occurred_at >= $1 AND occurred_at < $2
	`

	queryCountVisits = `SELECT COUNT(*) FROM visits`
)

const (
	// queryUpsertView is the single atomic compound update for one page
	// view: find-or-create plus both counter increments in one statement.
	queryUpsertView = `
		INSERT INTO content_stats (content_id, total_views, unique_views, updated_at)
		VALUES ($1, 1, $2, NOW())
		ON CONFLICT (content_id) DO UPDATE SET
			total_views = content_stats.total_views + 1,
			unique_views = content_stats.unique_views + $2,
			updated_at = NOW()
	`

	queryUpsertViewDay = `
		INSERT INTO content_view_days (content_id, day, views)
		VALUES ($1, $2, 1)
		ON CONFLICT (content_id, day) DO UPDATE SET
			views = content_view_days.views + 1
	`

	// queryEvictViewDays drops everything but the newest 30 days. Runs in
	// the same transaction as the day upsert so no reader ever observes a
	// history larger than its bound.
	queryEvictViewDays = `
		DELETE FROM content_view_days
		WHERE content_id = $1
		  AND day NOT IN (
			SELECT day FROM content_view_days
			WHERE content_id = $1
			ORDER BY day DESC
			LIMIT 30
		  )
	`

	// queryUpsertEngagement folds one close-out sample into the running
	// means. Postgres evaluates the SET expressions against the old row,
	// which is exactly the incremental-mean update.
	queryUpsertEngagement = `
		INSERT INTO content_stats (content_id, avg_duration_seconds, avg_scroll_depth_percent, engagement_samples, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (content_id) DO UPDATE SET
			avg_duration_seconds = content_stats.avg_duration_seconds
				+ ($2 - content_stats.avg_duration_seconds) / (content_stats.engagement_samples + 1),
			avg_scroll_depth_percent = content_stats.avg_scroll_depth_percent
				+ ($3 - content_stats.avg_scroll_depth_percent) / (content_stats.engagement_samples + 1),
			engagement_samples = content_stats.engagement_samples + 1,
			updated_at = NOW()
	`

	queryGetContentStats = `
		SELECT content_id, total_views, unique_views,
		       avg_duration_seconds, avg_scroll_depth_percent,
		       engagement_samples, updated_at
		FROM content_stats
		WHERE content_id = $1
	`

	queryGetViewDays = `
		SELECT day, views FROM content_view_days
		WHERE content_id = $1
		ORDER BY day ASC
	`

	queryDeleteContentStats   = `DELETE FROM content_stats WHERE content_id = $1`
	queryDeleteContentHistory = `DELETE FROM content_view_days WHERE content_id = $1`
)

const (
	queryResolveContent = `
		SELECT id, title, author_id, author_name
		FROM content_items
		WHERE id = ANY($1)
	`

	queryTotalsPosts    = `SELECT COUNT(*) FROM content_items`
	queryTotalsUsers    = `SELECT COUNT(*) FROM platform_users`
	queryTotalsComments = `SELECT COUNT(*) FROM interactions WHERE kind = 'comment'`

	queryInteractionSeries = `
		SELECT date_trunc('day', occurred_at) AS day, COUNT(*)
		FROM interactions
		WHERE kind = $1 AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY day
		ORDER BY day ASC
	`
)
