package sqlinline

// QChargeGeneration charges one generation against the account's monthly
// allowance as a single conditional update: the row lock serializes
// concurrent requests for the same account, and the WHERE clause re-checks
// the cap after the lock is acquired, so two in-flight requests can never
// both slip under the limit. An elapsed period rolls over to a fresh counter
// in the same statement. Returns no row when the allowance is exhausted.
//
// Limits are derived from the plan by the caller ($2 = free, $3 = pro).
const QChargeGeneration = `--sql 9e9dd621-fd57-41ea-b740-1b6be9dee1e7
update users
set posts_this_month = case when period_reset_at <= now() then 1 else posts_this_month + 1 end,
    period_reset_at = case when period_reset_at <= now() then date_trunc('month', now()) + interval '1 month' else period_reset_at end,
    updated_at = now()
where id = $1::uuid
  and (period_reset_at <= now()
       or posts_this_month < case when plan = 'pro' then $3::int else $2::int end)
returning plan, posts_this_month, period_reset_at;
`

// QInsertUsageEvent records one analytics event.
const QInsertUsageEvent = `--sql ca6da8cc-f423-412a-add4-f6482fab23e7
insert into usage_events (id, user_id, event_type, success, latency_ms, country, created_at, properties)
values ($1::uuid, $2::uuid, $3::text, $4::boolean, $5::int, nullif($6::text, ''), now(), coalesce($7::jsonb, '{}'::jsonb));
`
