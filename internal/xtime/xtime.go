// Package xtime converts between spectrum/baseline counters and wall-clock
// and Julian-date time, per the F-engine/X-engine timing model.
package xtime

import "time"

// UnixEpochJD is the Julian date of the Unix epoch (1970-01-01T00:00:00Z).
const UnixEpochJD = 2440587.5

// SecondsPerDay is the number of seconds in a day, used for JD conversion.
const SecondsPerDay = 86400.0

// SpectrumInterval returns the real-time duration of a single spectrum,
// given the total number of channels generated by the F-engine and its
// sample rate in Hz.
func SpectrumInterval(nChanTotalGenerated uint32, fengSampleRateHz float64) time.Duration {
	seconds := float64(2*nChanTotalGenerated) / fengSampleRateHz
	return time.Duration(seconds * float64(time.Second))
}

// SpectrumTime returns the real wall-clock time of spectrum mcnt, given the
// sender's sync time (milliseconds since the Unix epoch) and the F-engine
// sample rate.
func SpectrumTime(syncTimeMs int64, mcnt uint64, nChanTotalGenerated uint32, fengSampleRateHz float64) time.Time {
	syncTime := time.UnixMilli(syncTimeMs)
	offset := time.Duration(mcnt) * SpectrumInterval(nChanTotalGenerated, fengSampleRateHz)
	return syncTime.Add(offset)
}

// JulianDate converts a wall-clock time to a Julian date in days.
func JulianDate(t time.Time) float64 {
	return JulianDateAtUnixSeconds(float64(t.UnixNano()) / float64(time.Second))
}

// JulianDateAtUnixSeconds converts Unix seconds (may be fractional) to a
// Julian date in days.
func JulianDateAtUnixSeconds(unixSeconds float64) float64 {
	return UnixEpochJD + unixSeconds/SecondsPerDay
}

// MidpointJulianDate returns the Julian date of the *midpoint* of an
// integration, per the writer's metadata semantics: the dump for baseline b
// is stamped at unix - integrationTime/2, not at the dump's wall-clock end.
func MidpointJulianDate(t time.Time, integrationTime time.Duration) float64 {
	unixSeconds := float64(t.UnixNano())/float64(time.Second) - integrationTime.Seconds()/2
	return JulianDateAtUnixSeconds(unixSeconds)
}
