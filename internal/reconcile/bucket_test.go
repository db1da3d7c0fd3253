package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("week")
	require.NoError(t, err)
	assert.Equal(t, ByWeek, g)

	_, err = ParseGranularity("fortnight")
	assert.Error(t, err)
}

func TestAutoGranularity(t *testing.T) {
	from := date(2024, time.January, 1)
	assert.Equal(t, ByDay, AutoGranularity(from, date(2024, time.February, 15)))
	assert.Equal(t, ByMonth, AutoGranularity(from, date(2024, time.June, 1)))
}

func TestWalkDayBuckets(t *testing.T) {
	buckets := Walk(date(2024, time.March, 1), date(2024, time.March, 3), ByDay)

	require.Len(t, buckets, 3)
	for i, b := range buckets {
		assert.Equal(t, date(2024, time.March, 1+i), b.Start)
		assert.Equal(t, b.Start, b.End)
	}
}

func TestWalkWeekBucketsCappedAtRangeEnd(t *testing.T) {
	buckets := Walk(date(2024, time.March, 1), date(2024, time.March, 10), ByWeek)

	require.Len(t, buckets, 2)
	assert.Equal(t, date(2024, time.March, 7), buckets[0].End)
	assert.Equal(t, date(2024, time.March, 8), buckets[1].Start)
	assert.Equal(t, date(2024, time.March, 10), buckets[1].End)
}

func TestWalkMonthBucketsAlignToCalendar(t *testing.T) {
	buckets := Walk(date(2024, time.January, 15), date(2024, time.March, 10), ByMonth)

	require.Len(t, buckets, 3)
	assert.Equal(t, date(2024, time.January, 31), buckets[0].End)
	assert.Equal(t, date(2024, time.February, 1), buckets[1].Start)
	assert.Equal(t, date(2024, time.February, 29), buckets[1].End) // leap year
	assert.Equal(t, date(2024, time.March, 10), buckets[2].End)
}

func TestBucketContains(t *testing.T) {
	b := Bucket{Start: date(2024, time.March, 1), End: date(2024, time.March, 7), Granularity: ByWeek}

	inside := time.Date(2024, time.March, 7, 23, 30, 0, 0, time.UTC)
	outside := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)

	assert.True(t, b.Contains(&inside))
	assert.False(t, b.Contains(&outside))
	assert.False(t, b.Contains(nil))
}

func TestBucketMeta(t *testing.T) {
	day := Bucket{Start: date(2024, time.March, 5), End: date(2024, time.March, 5), Granularity: ByDay}
	assert.Equal(t, map[string]interface{}{
		"Year": 2024, "Month": "March", "Date": 5,
	}, day.Meta())

	week := Bucket{Start: date(2024, time.March, 1), End: date(2024, time.March, 7), Granularity: ByWeek}
	assert.Equal(t, map[string]interface{}{
		"Year": 2024, "Week_Start": "01-03-2024", "Week_End": "07-03-2024",
	}, week.Meta())

	month := Bucket{Start: date(2024, time.March, 1), End: date(2024, time.March, 31), Granularity: ByMonth}
	assert.Equal(t, map[string]interface{}{
		"Year": 2024, "Month": "March",
	}, month.Meta())
}

func TestBucketDateLabel(t *testing.T) {
	day := Bucket{Start: date(2024, time.March, 5), Granularity: ByDay}
	assert.Equal(t, "05-March-2024", day.DateLabel())

	month := Bucket{Start: date(2024, time.March, 1), Granularity: ByMonth}
	assert.Equal(t, "March 2024", month.DateLabel())
}
