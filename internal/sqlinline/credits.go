package sqlinline

const QSelectUserCredits = `--sql 3f0c1b7e-52a4-4c1d-9e0b-6a2f8d4c71a5
select credits
from "user"
where id = $1::text;
`

const QSelectUserCreditsForUpdate = `--sql b6d2e9a1-0c47-4f5e-8a13-2e9c7b5d4f60
select credits
from "user"
where id = $1::text
for update;
`

const QUpdateUserCredits = `--sql 9e4a7c20-61b3-4d8f-a5c2-0f1e3b7d9a84
update "user"
set credits = $2::bigint
where id = $1::text;
`

const QGrantUserCredits = `--sql 1c8f5a3d-7e92-4b06-bd41-5a0e6c2f9b17
update "user"
set credits = credits + $2::bigint
where id = $1::text
returning credits;
`
