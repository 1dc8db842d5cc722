package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/store"
	"drinkpos/backend/internal/xid"
)

func (s *Service) ListSchedules(ctx context.Context, userID string) ([]domain.WeekSchedule, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListSchedules(ctx, strings.TrimSpace(userID))
}

func (s *Service) GetSchedule(ctx context.Context, id string) (domain.WeekSchedule, error) {
	if _, err := requireStaff(ctx); err != nil {
		return domain.WeekSchedule{}, err
	}
	schedule, err := s.repo.GetSchedule(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.WeekSchedule{}, err
	}
	return *schedule, nil
}

func (s *Service) CreateSchedule(ctx context.Context, req domain.WeekScheduleRequest) (domain.WeekSchedule, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.WeekSchedule{}, err
	}
	if err := validateSchedule(&req); err != nil {
		return domain.WeekSchedule{}, err
	}

	now := s.now().UTC()
	created, err := s.repo.CreateSchedule(ctx, domain.WeekSchedule{
		ID:        xid.New("sched"),
		UserID:    req.UserID,
		Weeks:     req.Weeks,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.WeekSchedule{}, err
	}
	return *created, nil
}

func (s *Service) UpdateSchedule(ctx context.Context, id string, req domain.WeekScheduleRequest) (domain.WeekSchedule, error) {
	if _, err := requireManager(ctx); err != nil {
		return domain.WeekSchedule{}, err
	}
	if err := validateSchedule(&req); err != nil {
		return domain.WeekSchedule{}, err
	}

	updated, err := s.repo.UpdateSchedule(ctx, domain.WeekSchedule{
		ID:        strings.TrimSpace(id),
		UserID:    req.UserID,
		Weeks:     req.Weeks,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.WeekSchedule{}, err
	}
	return *updated, nil
}

func (s *Service) DeleteSchedule(ctx context.Context, id string) error {
	if _, err := requireManager(ctx); err != nil {
		return err
	}
	return s.repo.DeleteSchedule(ctx, strings.TrimSpace(id))
}

func validateSchedule(req *domain.WeekScheduleRequest) error {
	req.UserID = strings.ToLower(strings.TrimSpace(req.UserID))
	if req.UserID == "" {
		return fmt.Errorf("%w: user_id required", store.ErrInvalidInput)
	}
	if len(req.Weeks) == 0 {
		return fmt.Errorf("%w: at least one week required", store.ErrInvalidInput)
	}
	for i, week := range req.Weeks {
		if week.StartDate.IsZero() || week.EndDate.IsZero() || week.EndDate.Before(week.StartDate) {
			return fmt.Errorf("%w: week %d has an invalid date range", store.ErrInvalidInput, i+1)
		}
		for _, day := range week.Days.All() {
			for _, slot := range day {
				if err := validateShift(slot); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateShift(slot domain.ShiftSlot) error {
	start, err := time.Parse("15:04", strings.TrimSpace(slot.StartTime))
	if err != nil {
		return fmt.Errorf("%w: start_time %q must be HH:MM", store.ErrInvalidInput, slot.StartTime)
	}
	end, err := time.Parse("15:04", strings.TrimSpace(slot.EndTime))
	if err != nil {
		return fmt.Errorf("%w: end_time %q must be HH:MM", store.ErrInvalidInput, slot.EndTime)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: shift %s-%s ends before it starts", store.ErrInvalidInput, slot.StartTime, slot.EndTime)
	}
	return nil
}
