package models

import "github.com/cppla/jobboard/store"

// Field names of the dailyStats table.
const (
	StatJobID          = "jobId"
	StatDate           = "date"
	StatViews          = "views"
	StatClicks         = "clicks"
	StatViewerLocation = "viewerLocation"
)

// UnknownLocation is recorded when a view arrives without a location.
const UnknownLocation = "Unknown"

// DateLayout is the calendar-day format of DailyStat.Date.
const DateLayout = "2006-01-02"

// DailyStat aggregates views and clicks of one job on one calendar day.
// Nothing in the backend enforces one row per (JobID, Date).
type DailyStat struct {
	ID             int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	JobID          int64  `gorm:"column:jobId;index:idx_daily_job_date;not null" json:"jobId"`
	Date           string `gorm:"column:date;index:idx_daily_job_date;size:10;not null" json:"date"`
	Views          int64  `gorm:"column:views;not null;default:0" json:"views"`
	Clicks         int64  `gorm:"column:clicks;not null;default:0" json:"clicks"`
	ViewerLocation string `gorm:"column:viewerLocation;size:255" json:"viewerLocation"`
}

// DailyStatFromRow decodes a dailyStats row.
func DailyStatFromRow(row store.Row) DailyStat {
	id, _ := store.Int64(row, store.IDField)
	jobID, _ := store.Int64(row, StatJobID)
	views, _ := store.Int64(row, StatViews)
	clicks, _ := store.Int64(row, StatClicks)
	return DailyStat{
		ID:             id,
		JobID:          jobID,
		Date:           store.String(row, StatDate),
		Views:          views,
		Clicks:         clicks,
		ViewerLocation: store.String(row, StatViewerLocation),
	}
}

// Matches reports whether row is the aggregate of jobID on date.
func Matches(row store.Row, jobID int64, date string) bool {
	id, ok := store.Int64(row, StatJobID)
	return ok && id == jobID && store.String(row, StatDate) == date
}
