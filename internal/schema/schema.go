// Package schema describes the commerce tables to the text-generation model.
package schema

const (
	TableCustomers  = "customers"
	TableProducts   = "products"
	TableOrders     = "orders"
	TableOrderItems = "order_items"
	TableReviews    = "reviews"
)

var tables = []string{TableCustomers, TableProducts, TableOrders, TableOrderItems, TableReviews}

var columns = map[string][]string{
	TableCustomers:  {"customer_id", "name", "email", "phone", "address", "registration_date"},
	TableProducts:   {"product_id", "name", "description", "price", "category", "stock_quantity"},
	TableOrders:     {"order_id", "customer_id", "order_date", "total_amount", "status"},
	TableOrderItems: {"item_id", "order_id", "product_id", "quantity", "unit_price"},
	TableReviews:    {"review_id", "product_id", "customer_id", "rating", "comment", "review_date"},
}

const description = `
Tables:
1. customers
   - customer_id (PK)
   - name
   - email
   - phone
   - address
   - registration_date

2. products
   - product_id (PK)
   - name
   - description
   - price
   - category
   - stock_quantity

3. orders
   - order_id (PK)
   - customer_id (FK)
   - order_date
   - total_amount
   - status

4. order_items
   - item_id (PK)
   - order_id (FK)
   - product_id (FK)
   - quantity
   - unit_price

5. reviews
   - review_id (PK)
   - product_id (FK)
   - customer_id (FK)
   - rating
   - comment
   - review_date
`

// Description returns the static schema text used in the SQL prompt.
func Description() string {
	return description
}

// Tables returns the table names in foreign-key dependency order: every
// table appears after the tables it references.
func Tables() []string {
	out := make([]string, len(tables))
	copy(out, tables)
	return out
}

// Columns returns the column names of table in declaration order, or nil
// for an unknown table.
func Columns(table string) []string {
	cols, ok := columns[table]
	if !ok {
		return nil
	}
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}
