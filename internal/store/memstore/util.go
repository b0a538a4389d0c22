package memstore

import (
	"strconv"
	"time"
)

// epochDayKey renders the UTC calendar day (YYYY-MM-DD) a unix-second
// timestamp falls on, matching the day boundary the analytics engine's
// day-split attribution uses (spec §4.2.3).
func epochDayKey(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
