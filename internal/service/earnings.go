package service

import (
	"context"
	"time"

	"roadside-portal/internal/storage"
)

// Earning is one completed job's payout
type Earning struct {
	JobID       string    `json:"job_id"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earned_at"`
}

// EarningsSummary aggregates a technician's payouts
type EarningsSummary struct {
	TotalEarnings  float64   `json:"total_earnings"`
	TodayEarnings  float64   `json:"today_earnings"`
	WeeklyEarnings float64   `json:"weekly_earnings"`
	TotalJobs      int       `json:"total_jobs"`
	TodayJobs      int       `json:"today_jobs"`
	Earnings       []Earning `json:"earnings"`
}

// GetEarnings summarizes the technician's completed jobs. Weekly covers the seven days before today plus today.
func (j *JobService) GetEarnings(ctx context.Context, technicianID string) (*EarningsSummary, error) {
	jobs, err := j.storage.ListCompletedJobs(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	return summarizeEarnings(jobs, j.now()), nil
}

func summarizeEarnings(jobs []*storage.Job, now time.Time) *EarningsSummary {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -7)

	summary := &EarningsSummary{Earnings: []Earning{}}
	for _, job := range jobs {
		earnedAt := job.UpdatedAt
		if job.CompletedAt != nil {
			earnedAt = *job.CompletedAt
		}

		amount := job.EarnedAmount()
		summary.Earnings = append(summary.Earnings, Earning{
			JobID:       job.ID,
			Amount:      amount,
			Description: job.ServiceType + " - " + job.CustomerName,
			EarnedAt:    earnedAt,
		})

		summary.TotalEarnings += amount
		summary.TotalJobs++

		if !earnedAt.Before(weekStart) {
			summary.WeeklyEarnings += amount
		}
		if !earnedAt.Before(todayStart) {
			summary.TodayEarnings += amount
			summary.TodayJobs++
		}
	}

	return summary
}
