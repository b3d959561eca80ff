// Package dashboard aggregates platform-wide figures for administrators.
package dashboard

import (
	"context"
	"time"
)

// MonthlyWindow is how many calendar months GlobalStatistics reports.
const MonthlyWindow = 12

const monthLayout = "2006-01"

// MonthStat is the appointment volume of one calendar month. Revenue counts
// completed appointments only.
type MonthStat struct {
	Month   string  `json:"month"`
	Year    int     `json:"year"`
	Number  int     `json:"monthNumber"`
	Count   int     `json:"count"`
	Revenue float64 `json:"revenue"`
}

type Statistics struct {
	TotalUsers        int         `json:"totalUsers"`
	TotalDoctors      int         `json:"totalDoctors"`
	TotalPatients     int         `json:"totalPatients"`
	TotalAppointments int         `json:"totalAppointments"`
	TotalRevenue      float64     `json:"totalRevenue"`
	MonthlyStats      []MonthStat `json:"monthlyStats"`
}

// Totals are the whole-platform counters.
type Totals struct {
	Users        int
	Doctors      int
	Patients     int
	Appointments int
	Revenue      float64
}

type Repository interface {
	Totals(ctx context.Context) (*Totals, error)
	// Monthly returns per-month figures for appointments dated in
	// [from, to), keyed by "YYYY-MM". Months without appointments are absent.
	Monthly(ctx context.Context, from, to time.Time) (map[string]MonthStat, error)
}
