package sqlinline

// QUpsertGoogleUser creates or refreshes an account after Google sign-in.
// New accounts start on the free plan with a zeroed monthly counter and a
// reset date at the start of next month.
const QUpsertGoogleUser = `--sql bd55d58c-9d00-4b1a-a229-45c151241c9b
insert into users (id, google_sub, email, name, picture, plan, posts_this_month, period_reset_at, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, 'free', 0,
        date_trunc('month', now()) + interval '1 month', now(), now())
on conflict (google_sub) do update set
    email = excluded.email,
    name = excluded.name,
    picture = excluded.picture,
    updated_at = now()
returning id, email, name, picture, plan,
    case when period_reset_at <= now() then 0 else posts_this_month end,
    case when period_reset_at <= now() then date_trunc('month', now()) + interval '1 month' else period_reset_at end;
`

// QSelectUserByID reads one account. An elapsed period is reported as rolled
// over (zero used, next reset date) without being persisted; persistence of
// the rollover happens on the next charge.
const QSelectUserByID = `--sql 11ad6c74-ddc6-41a3-acbe-c392cce738e8
select id, email, name, picture, plan,
    case when period_reset_at <= now() then 0 else posts_this_month end,
    case when period_reset_at <= now() then date_trunc('month', now()) + interval '1 month' else period_reset_at end
from users
where id = $1::uuid
limit 1;
`

// QUpdatePlanByEmail applies a billing plan change (webhook driven).
const QUpdatePlanByEmail = `--sql 4b0b5848-7cce-4a08-980f-425f172d9c26
update users
set plan = $2::text, updated_at = now()
where email = $1::text
returning id;
`
