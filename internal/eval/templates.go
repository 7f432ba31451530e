package eval

// DefaultSuiteTemplate is the starter suite written by `mindwing eval init`.
const DefaultSuiteTemplate = `version: 1
name: starter

# Each case sends the query plus every doc to both judges. Agreement is
# reported as Cohen's kappa; the scores land in the ground truth table.
cases:
  - id: C1
    query: Which cache backs the session store?
    notes: Only the Redis doc is relevant, judges should agree.
    docs:
      - content: Session tokens live in Redis with a 30 minute TTL.
      - content: The marketing site is rendered from static templates.
      - content: Invoices are archived to cold storage each quarter.

  - id: C2
    query: How do we roll back a bad deploy?
    notes: Two docs describe the rollback path, the third is noise.
    docs:
      - content: Rollbacks pin the previous image tag and rerun the deploy job.
      - content: The deploy tool keeps the last five releases for instant rollback.
      - content: Standup moved to 9:30 on Tuesdays.

# Stored insights can be referenced by id instead of inlining content:
#  - id: C3
#    query: What did we decide about the message broker?
#    doc_ids: [12, 31]
`
