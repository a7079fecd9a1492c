// Package maintenance runs periodic background jobs on cron schedules.
//
// Each job has a target and a schedule; a job missing either is not
// registered. See JobSweep, JobReap and JobSnapshot.
//
// Schedules use the standard five-field cron syntax or descriptors such as
// "@every 30s".
package maintenance
