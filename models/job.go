package models

import "github.com/cppla/jobboard/store"

// Field names of the jobs table.
const (
	JobTotalViews  = "totalViews"
	JobTotalClicks = "totalClicks"
	JobFeatured    = "featured"
	JobPaid        = "paid"
)

// Job is a trackable job posting with its lifetime counters.
// The row is created and owned outside this service; we only increment counters and flag payments.
type Job struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"column:title;size:255" json:"title"`
	Company     string `gorm:"column:company;size:255" json:"company"`
	TotalViews  int64  `gorm:"column:totalViews;not null;default:0" json:"totalViews"`
	TotalClicks int64  `gorm:"column:totalClicks;not null;default:0" json:"totalClicks"`
	Featured    bool   `gorm:"column:featured;not null;default:false" json:"featured"`
	Paid        bool   `gorm:"column:paid;not null;default:false" json:"paid"`
}

// JobFromRow decodes a jobs row.
func JobFromRow(row store.Row) Job {
	id, _ := store.Int64(row, store.IDField)
	views, _ := store.Int64(row, JobTotalViews)
	clicks, _ := store.Int64(row, JobTotalClicks)
	return Job{
		ID:          id,
		Title:       store.String(row, "title"),
		Company:     store.String(row, "company"),
		TotalViews:  views,
		TotalClicks: clicks,
		Featured:    store.Bool(row, JobFeatured),
		Paid:        store.Bool(row, JobPaid),
	}
}
