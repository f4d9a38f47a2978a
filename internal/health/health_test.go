package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBMI(t *testing.T) {
	assert.InDelta(t, 24.22, BMI(DefaultProfile()), 0.01)
	assert.Equal(t, 0.0, BMI(Profile{WeightKg: 70}))
}

func TestSleepRecommendation(t *testing.T) {
	tests := map[int]string{10: "8-10", 17: "8-10", 18: "7-9", 64: "7-9", 65: "7-8", 90: "7-8"}
	for age, want := range tests {
		assert.Equal(t, want, SleepRecommendation(age), "age %d", age)
	}
}

func TestWaterIntake(t *testing.T) {
	assert.Equal(t, 2450, WaterIntakeMl(Profile{Gender: Male, WeightKg: 70}))
	assert.Equal(t, 2205, WaterIntakeMl(Profile{Gender: Female, WeightKg: 70}))
}

func TestStepGoal(t *testing.T) {
	tests := []struct {
		bmi  float64
		want int
	}{
		{17, 7000},
		{18.5, 8000},
		{24.8, 8000},
		{24.9, 10000},
		{29.8, 10000},
		{29.9, 12000},
		{35, 12000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StepGoal(tt.bmi), "bmi %.1f", tt.bmi)
	}
}

func TestCalorieGoal(t *testing.T) {
	// 10*70 + 6.25*170 - 5*25 + 5 = 1642.5
	assert.Equal(t, 411, CalorieGoal(DefaultProfile()))

	f := DefaultProfile()
	f.Gender = Female
	// 1642.5 - 166 = 1476.5
	assert.Equal(t, 369, CalorieGoal(f))
}

func TestSummarize(t *testing.T) {
	s := Summarize(DefaultProfile())
	assert.Equal(t, 24.2, s.BMI)
	assert.Equal(t, "7-9", s.SleepHours)
	assert.Equal(t, 2450, s.WaterMl)
	assert.Equal(t, 8000, s.Steps)
	assert.Equal(t, 411, s.CaloriesKcal)
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, Female, ParseGender("female"))
	assert.Equal(t, Male, ParseGender("MALE"))
	assert.Equal(t, Male, ParseGender(""))
}

func TestWeightChart(t *testing.T) {
	var entries []int
	for i := 1; i <= 35; i++ {
		entries = append(entries, 60+i)
	}

	week := WeightChart(entries, RangeWeek)
	assert.Equal(t, []int{89, 90, 91, 92, 93, 94, 95}, week)

	// Last 30 are 66..95: chunks of 7, 7, 7, 7, 2.
	month := WeightChart(entries, RangeMonth)
	assert.Equal(t, []int{69, 76, 83, 90, 95}, month)

	assert.Empty(t, WeightChart(nil, RangeMonth))
	assert.Equal(t, []int{70, 71}, WeightChart([]int{70, 71}, RangeWeek))
}

func TestNeedsWeightEntry(t *testing.T) {
	today := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)
	yesterday := today.AddDate(0, 0, -1)

	assert.True(t, NeedsWeightEntry(4, today, today))
	assert.True(t, NeedsWeightEntry(10, yesterday, today))
	assert.True(t, NeedsWeightEntry(10, time.Time{}, today))
	assert.False(t, NeedsWeightEntry(10, today.Add(-time.Hour), today))
}
