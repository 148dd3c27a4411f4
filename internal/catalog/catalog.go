package catalog

import "errors"

// Kind — тип заявки на накрутку
type Kind string

const (
	KindStars       Kind = "stars"
	KindSubscribers Kind = "subscribers"
)

var (
	ErrOutOfRange  = errors.New("quantity is out of range")
	ErrNotMultiple = errors.New("quantity is not a multiple of the step")
)

// PriceRule задаёт границы количества и цену в реферальных кредитах.
// UnitSize — за сколько единиц берётся UnitPrice (для обуначей цена
// указана за десяток, количество обязано делиться на Step).
type PriceRule struct {
	Min       int
	Max       int
	Step      int
	UnitPrice int
	UnitSize  int
	ServiceID int
}

var rules = map[Kind]PriceRule{
	KindStars:       {Min: 2, Max: 5, Step: 1, UnitPrice: 3, UnitSize: 1, ServiceID: 323},
	KindSubscribers: {Min: 50, Max: 200, Step: 10, UnitPrice: 1, UnitSize: 10, ServiceID: 483},
}

func Rule(kind Kind) (PriceRule, bool) {
	r, ok := rules[kind]
	return r, ok
}

// ValidateQuantity проверяет границы и кратность до любых обращений к балансу
func (r PriceRule) ValidateQuantity(quantity int) error {
	if quantity < r.Min || quantity > r.Max {
		return ErrOutOfRange
	}
	if r.Step > 1 && quantity%r.Step != 0 {
		return ErrNotMultiple
	}
	return nil
}

// Cost возвращает стоимость количества в кредитах
func (r PriceRule) Cost(quantity int) int {
	return quantity / r.UnitSize * r.UnitPrice
}

// Gift — позиция каталога подарков с фиксированной ценой
type Gift struct {
	Key   string
	Title string
	Price int
}

var gifts = []Gift{
	{Key: "15stars_heart", Title: "💝", Price: 25},
	{Key: "15stars_bear", Title: "🧸", Price: 25},
	{Key: "25stars_rose", Title: "🌹", Price: 35},
	{Key: "25stars_gift", Title: "🎁", Price: 35},
}

// Gifts возвращает каталог в порядке показа
func Gifts() []Gift {
	return gifts
}

func GiftByKey(key string) (Gift, bool) {
	for _, g := range gifts {
		if g.Key == key {
			return g, true
		}
	}
	return Gift{}, false
}
