package backgammon

const (
	Points      = 24
	CheckersPer = 15

	// BarPoint и OffPoint - служебные номера источника и назначения хода
	BarPoint = 24
	OffPoint = 25

	homeSize = 6
	barPip   = 25
)

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}

	return White
}

func (c Color) sign() int {
	if c == White {
		return 1
	}

	return -1
}

// Board - 24 пункта: положительное число - белые шашки, отрицательное - черные.
// Белые идут от индекса 23 к 0 и выводят за 0, черные наоборот.
type Board struct {
	Points [Points]int
	Bar    map[Color]int
	Off    map[Color]int
}

// NewBoard - стандартная начальная расстановка
func NewBoard() Board {
	b := Board{
		Bar: map[Color]int{White: 0, Black: 0},
		Off: map[Color]int{White: 0, Black: 0},
	}

	for _, p := range []struct{ idx, n int }{{23, 2}, {12, 5}, {7, 3}, {5, 5}} {
		b.Points[p.idx] = p.n
		b.Points[Points-1-p.idx] = -p.n
	}

	return b
}

func (b *Board) clone() Board {
	c := Board{
		Points: b.Points,
		Bar:    map[Color]int{White: b.Bar[White], Black: b.Bar[Black]},
		Off:    map[Color]int{White: b.Off[White], Black: b.Off[Black]},
	}

	return c
}

// count - число шашек цвета на пункте
func (b *Board) count(c Color, idx int) int {
	n := b.Points[idx] * c.sign()
	if n < 0 {
		return 0
	}

	return n
}

// pip - расстояние до дома с точки зрения цвета: 1..24, бар = 25
func pip(c Color, idx int) int {
	if idx == BarPoint {
		return barPip
	}
	if c == White {
		return idx + 1
	}

	return Points - idx
}

func pointAt(c Color, p int) int {
	if c == White {
		return p - 1
	}

	return Points - p
}

// allHome - все оставшиеся шашки цвета в доме
func (b *Board) allHome(c Color) bool {
	if b.Bar[c] > 0 {
		return false
	}

	for idx := 0; idx < Points; idx++ {
		if b.count(c, idx) > 0 && pip(c, idx) > homeSize {
			return false
		}
	}

	return true
}

// farthest - наибольший pip среди шашек цвета на доске
func (b *Board) farthest(c Color) int {
	far := 0
	for idx := 0; idx < Points; idx++ {
		if b.count(c, idx) > 0 && pip(c, idx) > far {
			far = pip(c, idx)
		}
	}

	return far
}

// check проверяет ход одной шашки на значение кубика и возвращает индекс назначения (или OffPoint)
func (b *Board) check(c Color, from, die int) (int, error) {
	if from != BarPoint && (from < 0 || from >= Points) {
		return 0, ErrInvalidPoint
	}

	if b.Bar[c] > 0 && from != BarPoint {
		return 0, ErrMustEnterFromBar
	}

	if from == BarPoint {
		if b.Bar[c] == 0 {
			return 0, ErrNoChecker
		}
	} else if b.count(c, from) == 0 {
		return 0, ErrNoChecker
	}

	p := pip(c, from)
	target := p - die

	if target <= 0 {
		if !b.allHome(c) {
			return 0, ErrCannotBearOff
		}
		// больший кубик выводит только самую дальнюю шашку
		if target < 0 && b.farthest(c) > p {
			return 0, ErrNoMatchingDie
		}

		return OffPoint, nil
	}

	to := pointAt(c, target)
	if b.count(c.Opponent(), to) >= 2 {
		return 0, ErrBlocked
	}

	return to, nil
}

// apply выполняет проверенный ход, одиночная шашка соперника уходит на бар
func (b *Board) apply(c Color, from, to int) (hit bool) {
	if from == BarPoint {
		b.Bar[c]--
	} else {
		b.Points[from] -= c.sign()
	}

	if to == OffPoint {
		b.Off[c]++
		return false
	}

	opp := c.Opponent()
	if b.count(opp, to) == 1 {
		b.Points[to] = 0
		b.Bar[opp]++
		hit = true
	}

	b.Points[to] += c.sign()

	return hit
}
