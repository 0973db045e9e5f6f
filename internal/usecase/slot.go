package usecase

import (
	"fmt"
	"sort"

	"clinic-booking/internal/data/entity"
	"clinic-booking/pkg/utils"
)

// SlotPolicy lays out a doctor's day as consecutive fixed-length slots
// starting at DayStart. MaxPerDay of 0 means slots run until midnight.
type SlotPolicy struct {
	DayStart  entity.TimeOfDay
	Length    int
	MaxPerDay int
}

func NewSlotPolicy(cfg utils.SlotConfig) (SlotPolicy, error) {
	start, err := entity.ParseTimeOfDay(cfg.DayStart)
	if err != nil {
		return SlotPolicy{}, fmt.Errorf("slot day start: %w", err)
	}
	if cfg.LengthMinutes <= 0 {
		return SlotPolicy{}, fmt.Errorf("slot length must be positive, got %d", cfg.LengthMinutes)
	}
	if cfg.MaxPerDay < 0 {
		return SlotPolicy{}, fmt.Errorf("slots per day must not be negative, got %d", cfg.MaxPerDay)
	}
	return SlotPolicy{DayStart: start, Length: cfg.LengthMinutes, MaxPerDay: cfg.MaxPerDay}, nil
}

// At returns the start of the n-th slot of the day (n from 0). ok is false
// past the daily cap or when the slot would start after midnight.
func (p SlotPolicy) At(n int) (t entity.TimeOfDay, ok bool) {
	if n < 0 || (p.MaxPerDay > 0 && n >= p.MaxPerDay) {
		return 0, false
	}
	t = p.DayStart + entity.TimeOfDay(n*p.Length)
	if !t.Valid() {
		return 0, false
	}
	return t, true
}

// NextFree returns the first slot at index >= from whose start is not in taken.
func (p SlotPolicy) NextFree(from int, taken map[entity.TimeOfDay]bool) (entity.TimeOfDay, bool) {
	for n := from; ; n++ {
		t, ok := p.At(n)
		if !ok {
			return 0, false
		}
		if !taken[t] {
			return t, true
		}
	}
}

type DaySlot struct {
	Time      entity.TimeOfDay
	Available bool
}

// Grid lists every slot of the day with its availability. Booked times that
// fall off the grid are included as unavailable.
func (p SlotPolicy) Grid(booked []entity.TimeOfDay) []DaySlot {
	taken := make(map[entity.TimeOfDay]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}

	var slots []DaySlot
	onGrid := make(map[entity.TimeOfDay]bool)
	for n := 0; ; n++ {
		t, ok := p.At(n)
		if !ok {
			break
		}
		onGrid[t] = true
		slots = append(slots, DaySlot{Time: t, Available: !taken[t]})
	}

	for t := range taken {
		if !onGrid[t] {
			slots = append(slots, DaySlot{Time: t, Available: false})
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Time < slots[j].Time })
	return slots
}
