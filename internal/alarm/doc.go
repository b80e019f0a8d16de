// Package alarm raises throttled events from health scores and machine
// status. Score alarms fire when a configured health stays inside its alarm
// bands long enough and the per-key interval has elapsed; status alarms fire
// on configured status codes up to a per-key cap with a recovery window.
package alarm
