// Package health computes the daily dashboard metrics from a user profile.
package health

import (
	"math"
	"strings"
	"time"
)

type Gender string

const (
	Male   Gender = "MALE"
	Female Gender = "FEMALE"
)

// ParseGender maps a profile value to a Gender. Anything but FEMALE is male,
// matching the profile default.
func ParseGender(s string) Gender {
	if strings.EqualFold(strings.TrimSpace(s), string(Female)) {
		return Female
	}
	return Male
}

// Profile holds the fields the metrics depend on.
type Profile struct {
	Name     string  `json:"name"`
	Gender   Gender  `json:"gender"`
	HeightCm float64 `json:"height_cm"`
	WeightKg float64 `json:"weight_kg"`
	Age      int     `json:"age"`
}

// DefaultProfile is used until the user completes onboarding.
func DefaultProfile() Profile {
	return Profile{Name: "Jade West", Gender: Male, HeightCm: 170, WeightKg: 70, Age: 25}
}

// Summary is the dashboard's set of daily indexes.
type Summary struct {
	BMI          float64 `json:"bmi"`
	SleepHours   string  `json:"sleep_hours"`
	WaterMl      int     `json:"water_ml"`
	Steps        int     `json:"steps"`
	CaloriesKcal int     `json:"calories_kcal"`
}

// BMI is weight in kilograms over height in meters squared. It is 0 for a
// non-positive height.
func BMI(p Profile) float64 {
	m := p.HeightCm / 100
	if m <= 0 {
		return 0
	}
	return p.WeightKg / (m * m)
}

// SleepRecommendation returns the recommended nightly hours for age.
func SleepRecommendation(age int) string {
	switch {
	case age >= 65:
		return "7-8"
	case age >= 18:
		return "7-9"
	default:
		return "8-10"
	}
}

// WaterIntakeMl is 35 ml per kilogram, reduced by a tenth for women.
func WaterIntakeMl(p Profile) int {
	intake := p.WeightKg * 35
	if p.Gender == Female {
		intake *= 0.9
	}
	return int(math.Round(intake))
}

// StepGoal picks a daily step target from the BMI band.
func StepGoal(bmi float64) int {
	switch {
	case bmi < 18.5:
		return 7000
	case bmi < 24.9:
		return 8000
	case bmi < 29.9:
		return 10000
	default:
		return 12000
	}
}

// BMR is the Mifflin-St Jeor basal metabolic rate.
func BMR(p Profile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == Female {
		return base - 161
	}
	return base + 5
}

// CalorieGoal is a quarter of the BMR, rounded.
func CalorieGoal(p Profile) int {
	return int(math.Round(BMR(p) * 0.25))
}

func Summarize(p Profile) Summary {
	bmi := BMI(p)
	return Summary{
		BMI:          math.Round(bmi*10) / 10,
		SleepHours:   SleepRecommendation(p.Age),
		WaterMl:      WaterIntakeMl(p),
		Steps:        StepGoal(bmi),
		CaloriesKcal: CalorieGoal(p),
	}
}

// Chart ranges.
const (
	RangeWeek  = "week"
	RangeMonth = "month"
)

// MaxWeightEntries is how many weight entries the log retains.
const MaxWeightEntries = 30

// WeightChart returns the points plotted for a range: the last 7 entries
// for a week, or the last 30 averaged in chunks of 7 for a month.
func WeightChart(entries []int, rangeName string) []int {
	if rangeName != RangeMonth {
		return lastN(entries, 7)
	}

	recent := lastN(entries, MaxWeightEntries)
	var points []int
	for i := 0; i < len(recent); i += 7 {
		end := min(i+7, len(recent))
		sum := 0
		for _, w := range recent[i:end] {
			sum += w
		}
		points = append(points, int(math.Round(float64(sum)/float64(end-i))))
	}
	return points
}

// NeedsWeightEntry reports whether to ask for today's weight: fewer than
// five entries so far, or none recorded today.
func NeedsWeightEntry(count int, lastEntry, today time.Time) bool {
	if count < 5 {
		return true
	}
	if lastEntry.IsZero() {
		return true
	}
	y1, m1, d1 := lastEntry.Date()
	y2, m2, d2 := today.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

func lastN(s []int, n int) []int {
	if len(s) <= n {
		return append([]int(nil), s...)
	}
	return append([]int(nil), s[len(s)-n:]...)
}
