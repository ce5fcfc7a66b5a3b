package cart

// MergeLine is one remote add needed to fold a guest line into a user's cart.
type MergeLine struct {
	ProductID int64
	Delta     int
	Resulting int
}

type MergeResult struct {
	Apply   []MergeLine
	Dropped []LineItem
}

// Merge folds a guest cart into a server cart: union by product id, guest
// quantities added on top of server quantities, capped at the known stock.
// Guest lines that cannot contribute anything are reported in Dropped.
func Merge(guest, server Cart) MergeResult {
	var res MergeResult
	for _, g := range guest.Items {
		if g.ProductID == 0 || g.Quantity < 1 {
			res.Dropped = append(res.Dropped, g)
			continue
		}

		current := 0
		stock := g.StockQuantity
		if s, idx := server.Find(g.ProductID); idx >= 0 {
			current = s.Quantity
			if s.StockQuantity != UnknownStock {
				stock = s.StockQuantity
			}
		}

		target := current + g.Quantity
		if stock != UnknownStock && target > stock {
			target = stock
		}
		if target <= current {
			res.Dropped = append(res.Dropped, g)
			continue
		}
		res.Apply = append(res.Apply, MergeLine{
			ProductID: g.ProductID,
			Delta:     target - current,
			Resulting: target,
		})
	}
	return res
}
