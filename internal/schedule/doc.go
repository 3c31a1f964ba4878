// Package schedule turns a user's local hour/day selection into
// timezone-correct UTC cron rules, expands those rules into concrete
// task occurrences over a date window, and resolves which single
// occurrence per definition is currently actionable.
//
// Rules use the Quartz six/seven-field form "0 0 <hours> ? * <DAYS> *"
// with comma-separated hours (0-23) and three-letter day abbreviations.
package schedule
