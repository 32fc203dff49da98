package mastery

// ══════════════════════════════════════════════════════════════════════════════
// TREND & MASTERY LEVEL CALCULATOR
// Чистые функции без побочных эффектов и без обращения к хранилищу.
//
// Пороговые значения - точные точки отсечения, воспроизведённые из
// продакшн-поведения. Их нельзя менять без явного дизайн-решения:
// от них зависят уровни, серьёзность пробелов и веха "mastered".
// ══════════════════════════════════════════════════════════════════════════════

// Пороги уровней мастерства (проценты).
const (
	// ThresholdBeginning - ниже этого процента уровень beginning.
	ThresholdBeginning = 40

	// ThresholdProficient - с этого процента начинается proficient.
	ThresholdProficient = 70

	// ThresholdMastered - с этого процента концепт считается освоенным.
	ThresholdMastered = 90

	// TrendBand - изменение в пределах ±TrendBand считается стабильным.
	TrendBand = 5
)

// Level представляет дискретный уровень мастерства.
type Level string

const (
	// LevelNotStarted - попыток не было либо процент равен нулю.
	LevelNotStarted Level = "not_started"

	// LevelBeginning - процент в (0, 40).
	LevelBeginning Level = "beginning"

	// LevelDeveloping - процент в [40, 70).
	LevelDeveloping Level = "developing"

	// LevelProficient - процент в [70, 90).
	LevelProficient Level = "proficient"

	// LevelMastered - процент в [90, 100].
	LevelMastered Level = "mastered"
)

// String возвращает строковое представление уровня.
func (l Level) String() string {
	return string(l)
}

// Trend представляет краткосрочное направление изменения процента.
type Trend string

const (
	// TrendImproving - процент вырос более чем на TrendBand.
	TrendImproving Trend = "improving"

	// TrendStable - процент изменился в пределах ±TrendBand.
	TrendStable Trend = "stable"

	// TrendDeclining - процент упал более чем на TrendBand.
	TrendDeclining Trend = "declining"
)

// String возвращает строковое представление тренда.
func (t Trend) String() string {
	return string(t)
}

// LevelForPercent возвращает уровень мастерства для процента [0, 100].
// Границы: 0 -> not_started; (0,40) -> beginning; [40,70) -> developing;
// [70,90) -> proficient; [90,100] -> mastered.
func LevelForPercent(percent int) Level {
	switch {
	case percent <= 0:
		return LevelNotStarted
	case percent < ThresholdBeginning:
		return LevelBeginning
	case percent < ThresholdProficient:
		return LevelDeveloping
	case percent < ThresholdMastered:
		return LevelProficient
	default:
		return LevelMastered
	}
}

// TrendFor возвращает направление изменения между двумя срезами процента.
// Рост больше +TrendBand -> improving; падение больше -TrendBand -> declining;
// иначе stable. При отсутствии предыдущего среза вызывающий код обязан
// использовать TrendStable (см. MasteryRecord.ApplyAttempt).
func TrendFor(previousPercent, newPercent int) Trend {
	delta := newPercent - previousPercent
	switch {
	case delta > TrendBand:
		return TrendImproving
	case delta < -TrendBand:
		return TrendDeclining
	default:
		return TrendStable
	}
}
