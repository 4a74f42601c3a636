package seed

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

var (
	Categories    = []string{"Electronics", "Books", "Clothing", "Home & Garden", "Sports"}
	OrderStatuses = []string{"Pending", "Completed", "Shipped", "Cancelled"}
)

// Counts sizes a generated dataset. Order items are derived from orders.
type Counts struct {
	Customers int
	Products  int
	Orders    int
	Reviews   int
}

func DefaultCounts() Counts {
	return Counts{Customers: 1000, Products: 500, Orders: 2000, Reviews: 3000}
}

func (c Counts) validate() error {
	if c.Customers <= 0 || c.Products <= 0 {
		return fmt.Errorf("customers and products must be > 0")
	}
	if c.Orders < 0 || c.Reviews < 0 {
		return fmt.Errorf("orders and reviews must be >= 0")
	}
	return nil
}

// Generator is deterministic for a given seed and clock.
type Generator struct {
	rnd *rand.Rand
	now func() time.Time
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *Generator) Generate(counts Counts) (Dataset, error) {
	if err := counts.validate(); err != nil {
		return Dataset{}, err
	}
	now := g.now().UTC().Truncate(time.Microsecond)
	twoYears := now.AddDate(-2, 0, 0)
	oneYear := now.AddDate(-1, 0, 0)

	ds := Dataset{
		Customers:  make([]Customer, 0, counts.Customers),
		Products:   make([]Product, 0, counts.Products),
		Orders:     make([]Order, 0, counts.Orders),
		OrderItems: make([]OrderItem, 0, counts.Orders*3),
		Reviews:    make([]Review, 0, counts.Reviews),
	}

	for i := 1; i <= counts.Customers; i++ {
		first, last := pickOne(g.rnd, firstNames), pickOne(g.rnd, lastNames)
		ds.Customers = append(ds.Customers, Customer{
			CustomerID:       int64(i),
			Name:             first + " " + last,
			Email:            g.email(first, last),
			Phone:            g.phone(),
			Address:          g.address(),
			RegistrationDate: g.timeBetween(twoYears, now),
		})
	}

	for i := 1; i <= counts.Products; i++ {
		ds.Products = append(ds.Products, Product{
			ProductID:     int64(i),
			Name:          g.productName(),
			Description:   g.text(200),
			Price:         round2(10 + g.rnd.Float64()*990),
			Category:      pickOne(g.rnd, Categories),
			StockQuantity: int64(g.rnd.Intn(1001)),
		})
	}

	var itemID int64
	for i := 1; i <= counts.Orders; i++ {
		order := Order{
			OrderID:    int64(i),
			CustomerID: ds.Customers[g.rnd.Intn(len(ds.Customers))].CustomerID,
			OrderDate:  g.timeBetween(oneYear, now),
			Status:     pickOne(g.rnd, OrderStatuses),
		}
		var total float64
		for n := g.rnd.Intn(5) + 1; n > 0; n-- {
			product := ds.Products[g.rnd.Intn(len(ds.Products))]
			quantity := int64(g.rnd.Intn(5) + 1)
			itemID++
			ds.OrderItems = append(ds.OrderItems, OrderItem{
				ItemID:    itemID,
				OrderID:   order.OrderID,
				ProductID: product.ProductID,
				Quantity:  quantity,
				UnitPrice: product.Price,
			})
			total += float64(quantity) * product.Price
		}
		order.TotalAmount = round2(total)
		ds.Orders = append(ds.Orders, order)
	}

	for i := 1; i <= counts.Reviews; i++ {
		ds.Reviews = append(ds.Reviews, Review{
			ReviewID:   int64(i),
			ProductID:  ds.Products[g.rnd.Intn(len(ds.Products))].ProductID,
			CustomerID: ds.Customers[g.rnd.Intn(len(ds.Customers))].CustomerID,
			Rating:     int64(g.rnd.Intn(5) + 1),
			Comment:    g.text(200),
			ReviewDate: g.timeBetween(oneYear, now),
		})
	}
	return ds, nil
}

func (g *Generator) timeBetween(from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	offset := time.Duration(g.rnd.Int63n(int64(span)))
	return from.Add(offset).Truncate(time.Microsecond)
}

func (g *Generator) email(first, last string) string {
	local := strings.ToLower(first) + "." + strings.ToLower(last)
	if g.rnd.Intn(2) == 0 {
		local = fmt.Sprintf("%s%d", local, g.rnd.Intn(100))
	}
	return local + "@" + pickOne(g.rnd, emailDomains)
}

func (g *Generator) phone() string {
	return fmt.Sprintf("(%03d) %03d-%04d", 200+g.rnd.Intn(800), g.rnd.Intn(1000), g.rnd.Intn(10000))
}

func (g *Generator) address() string {
	return fmt.Sprintf("%d %s %s, %s, %s %05d",
		g.rnd.Intn(9900)+100,
		pickOne(g.rnd, streetNames),
		pickOne(g.rnd, streetSuffixes),
		pickOne(g.rnd, cities),
		pickOne(g.rnd, states),
		g.rnd.Intn(100000),
	)
}

func (g *Generator) productName() string {
	return pickOne(g.rnd, productAdjectives) + " " + pickOne(g.rnd, productMaterials) + " " + pickOne(g.rnd, productNouns)
}

// text builds sentences of filler words, at most maxChars long.
func (g *Generator) text(maxChars int) string {
	var b strings.Builder
	for {
		words := g.rnd.Intn(8) + 4
		sentence := make([]string, words)
		for i := range sentence {
			sentence[i] = pickOne(g.rnd, loremWords)
		}
		sentence[0] = strings.ToUpper(sentence[0][:1]) + sentence[0][1:]
		next := strings.Join(sentence, " ") + "."
		extra := len(next)
		if b.Len() > 0 {
			extra++
		}
		if b.Len()+extra > maxChars {
			if b.Len() == 0 {
				return next[:maxChars-1] + "."
			}
			return b.String()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(next)
		if g.rnd.Intn(3) == 0 {
			return b.String()
		}
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda",
		"David", "Elizabeth", "William", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
		"Thomas", "Sarah", "Carlos", "Karen", "Daniel", "Lisa", "Matthew", "Nancy",
		"Anthony", "Sandra", "Mark", "Ashley", "Priya", "Emily", "Wei", "Fatima",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
		"Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson", "White",
		"Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson", "Patel", "Nguyen",
	}
	emailDomains = []string{"example.com", "example.org", "example.net", "mail.test", "shop.test"}
	streetNames  = []string{
		"Maple", "Oak", "Pine", "Cedar", "Elm", "Washington", "Lake", "Hill",
		"Park", "Main", "Sunset", "River", "Highland", "Walnut", "Chestnut", "Willow",
	}
	streetSuffixes = []string{"St", "Ave", "Blvd", "Rd", "Ln", "Dr", "Ct", "Way"}
	cities         = []string{
		"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton", "Fairview", "Salem",
		"Madison", "Georgetown", "Arlington", "Ashland", "Dover", "Oxford", "Jackson", "Burlington",
	}
	states            = []string{"CA", "TX", "NY", "FL", "IL", "PA", "OH", "GA", "NC", "MI", "WA", "CO"}
	productAdjectives = []string{
		"Ergonomic", "Rustic", "Sleek", "Refined", "Handcrafted", "Practical", "Intelligent", "Gorgeous",
		"Incredible", "Fantastic", "Licensed", "Generic", "Small", "Tasty", "Awesome", "Durable",
	}
	productMaterials = []string{
		"Steel", "Wooden", "Concrete", "Plastic", "Cotton", "Granite", "Rubber", "Metal",
		"Soft", "Fresh", "Frozen", "Bamboo", "Leather", "Silk", "Wool", "Linen",
	}
	productNouns = []string{
		"Chair", "Car", "Computer", "Keyboard", "Mouse", "Bike", "Ball", "Gloves",
		"Pants", "Shirt", "Table", "Shoes", "Hat", "Towels", "Soap", "Lamp",
		"Headphones", "Novel", "Backpack", "Watch", "Speaker", "Blender", "Tent", "Racket",
	}
	loremWords = []string{
		"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit",
		"sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore", "et",
		"dolore", "magna", "aliqua", "enim", "ad", "minim", "veniam", "quis",
		"nostrud", "exercitation", "ullamco", "laboris", "nisi", "aliquip", "ex", "ea",
		"commodo", "consequat", "duis", "aute", "irure", "in", "reprehenderit", "voluptate",
		"velit", "esse", "cillum", "fugiat", "nulla", "pariatur", "excepteur", "sint",
	}
)
