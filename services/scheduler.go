// services/scheduler.go
package services

import (
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartRoundScheduler polls the league calendar and opens the future round
// as soon as it diverges from the current one.
func (s *RoundService) StartRoundScheduler(periods PeriodSource) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(30*time.Minute),
		gocron.NewTask(func() {
			info, err := periods.Fetch()
			if err != nil {
				log.Printf("[Scheduler] Period fetch failed: %v", err)
				return
			}
			if info.FutureRound == "" || info.FutureRound == info.CurrentRound {
				return
			}

			roundTime, err := ParseRoundTime(info.FutureRound)
			if err != nil {
				log.Printf("[Scheduler] Bad future round label %q: %v", info.FutureRound, err)
				return
			}

			round, err := s.Create(roundTime)
			if err != nil {
				if !errors.Is(err, ErrNoNewPeriod) {
					log.Printf("[Scheduler] Failed to create round: %v", err)
				}
				return
			}
			log.Printf("✅ Opened new round %s (effective %s)", round.Code, round.RoundTime)
		}),
	)
}
