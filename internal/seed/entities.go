// Package seed fills the commerce tables with deterministic sample data.
package seed

import "time"

type Customer struct {
	CustomerID       int64     `parquet:"customer_id"`
	Name             string    `parquet:"name"`
	Email            string    `parquet:"email"`
	Phone            string    `parquet:"phone"`
	Address          string    `parquet:"address"`
	RegistrationDate time.Time `parquet:"registration_date,timestamp(microsecond)"`
}

type Product struct {
	ProductID     int64   `parquet:"product_id"`
	Name          string  `parquet:"name"`
	Description   string  `parquet:"description"`
	Price         float64 `parquet:"price"`
	Category      string  `parquet:"category"`
	StockQuantity int64   `parquet:"stock_quantity"`
}

type Order struct {
	OrderID     int64     `parquet:"order_id"`
	CustomerID  int64     `parquet:"customer_id"`
	OrderDate   time.Time `parquet:"order_date,timestamp(microsecond)"`
	TotalAmount float64   `parquet:"total_amount"`
	Status      string    `parquet:"status"`
}

type OrderItem struct {
	ItemID    int64   `parquet:"item_id"`
	OrderID   int64   `parquet:"order_id"`
	ProductID int64   `parquet:"product_id"`
	Quantity  int64   `parquet:"quantity"`
	UnitPrice float64 `parquet:"unit_price"`
}

type Review struct {
	ReviewID   int64     `parquet:"review_id"`
	ProductID  int64     `parquet:"product_id"`
	CustomerID int64     `parquet:"customer_id"`
	Rating     int64     `parquet:"rating"`
	Comment    string    `parquet:"comment"`
	ReviewDate time.Time `parquet:"review_date,timestamp(microsecond)"`
}

// Dataset holds one generated fill of every table.
type Dataset struct {
	Customers  []Customer
	Products   []Product
	Orders     []Order
	OrderItems []OrderItem
	Reviews    []Review
}

func (d Dataset) Len() int {
	return len(d.Customers) + len(d.Products) + len(d.Orders) + len(d.OrderItems) + len(d.Reviews)
}

// Values follows the column order of schema.Columns.
func (c Customer) Values() []any {
	return []any{c.CustomerID, c.Name, c.Email, c.Phone, c.Address, c.RegistrationDate}
}

func (p Product) Values() []any {
	return []any{p.ProductID, p.Name, p.Description, p.Price, p.Category, p.StockQuantity}
}

func (o Order) Values() []any {
	return []any{o.OrderID, o.CustomerID, o.OrderDate, o.TotalAmount, o.Status}
}

func (i OrderItem) Values() []any {
	return []any{i.ItemID, i.OrderID, i.ProductID, i.Quantity, i.UnitPrice}
}

func (r Review) Values() []any {
	return []any{r.ReviewID, r.ProductID, r.CustomerID, r.Rating, r.Comment, r.ReviewDate}
}
