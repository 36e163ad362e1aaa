package reply

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/kart-voice/internal/domain/product"
	"github.com/xenking/kart-voice/internal/intent"
	"github.com/xenking/kart-voice/internal/search"
)

func shoe(id, name string, price int) product.Product {
	return product.Product{ID: id, Name: name, Price: price, Category: "casual", InStock: true}
}

func live(id, name string, price int) product.Product {
	return product.Product{
		ID:       product.LiveIDPrefix + id,
		Name:     name + product.LiveMarker,
		Price:    price,
		Category: "casual",
		InStock:  true,
		Source:   product.SourceLive,
	}
}

func TestSynthesize_Empty(t *testing.T) {
	want := make([]string, len(Suggestions))
	for i, s := range Suggestions {
		want[i] = fmt.Sprintf("I couldn't find any shoes matching your criteria. Try asking for something like '%s'.", s)
	}

	s := New(rand.New(rand.NewPCG(1, 2)))
	for range 20 {
		assert.Contains(t, want, s.Synthesize(nil, intent.Criteria{}))
	}
	assert.Contains(t, want, Synthesize([]product.Product{}, intent.Criteria{MaxPrice: intent.Int(1)}))
}

func TestSynthesize_ConcurrentSeeded(t *testing.T) {
	s := New(rand.New(rand.NewPCG(1, 2)))

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 100 {
				assert.Contains(t, s.Synthesize(nil, intent.Criteria{}), "Try asking for something like")
			}
		})
	}
	wg.Wait()
}

func TestSynthesize_Few(t *testing.T) {
	tests := []struct {
		name     string
		products []product.Product
		criteria intent.Criteria
		want     string
	}{
		{
			name:     "single",
			products: []product.Product{shoe("1", "Tiny Runner Pro", 45)},
			criteria: intent.Criteria{MaxPrice: intent.Int(50), Category: "running"},
			want:     "Found 1 running shoe under $50. Here they are: Tiny Runner Pro for $45.",
		},
		{
			name:     "three without qualifiers",
			products: []product.Product{shoe("1", "A", 10), shoe("2", "B", 20), shoe("3", "C", 30)},
			want:     "Found 3 shoes. Here they are: A for $10, B for $20, C for $30.",
		},
		{
			name:     "range qualifier",
			products: []product.Product{shoe("1", "A", 25), shoe("2", "B", 30)},
			criteria: intent.Criteria{MinPrice: intent.Int(20), MaxPrice: intent.Int(40)},
			want:     "Found 2 shoes between $20 and $40. Here they are: A for $25, B for $30.",
		},
		{
			name:     "min qualifier and dynamic category",
			products: []product.Product{shoe("1", "A", 70)},
			criteria: intent.Criteria{MinPrice: intent.Int(60), Categories: []string{"summer", "sale"}},
			want:     "Found 1 summer shoe over $60. Here they are: A for $70.",
		},
		{
			name:     "live items are marked and unsuffixed",
			products: []product.Product{live("3", "Trail Blazer", 48), shoe("3", "Little Explorer", 38)},
			want: "Found 2 shoes. Including 1 live product from our store. " +
				"Here they are: Trail Blazer for $48 from our live inventory, Little Explorer for $38.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Synthesize(tt.products, tt.criteria))
		})
	}
}

func TestSynthesize_Many(t *testing.T) {
	products := search.Rank([]product.Product{
		shoe("5", "Fifty", 50),
		shoe("3", "Thirty", 30),
		shoe("1", "Ten", 10),
		shoe("4", "Forty", 40),
		shoe("2", "Twenty", 20),
	})

	got := Synthesize(products, intent.Criteria{})
	assert.Equal(t,
		"Found 5 shoes. The prices range from $10 to $50. Top picks are Ten for $10 and Twenty for $20.",
		got,
	)
}

func TestSynthesize_ManyWithLive(t *testing.T) {
	products := search.Rank([]product.Product{
		shoe("1", "Ten", 10),
		shoe("2", "Twenty", 20),
		live("7", "Court King", 90),
		shoe("3", "Thirty", 30),
		live("8", "Sky Walker", 60),
	})

	got := Synthesize(products, intent.Criteria{MaxPrice: intent.Int(100), Category: "casual"})
	assert.Equal(t,
		"Found 5 casual shoes under $100. Including 2 live products from our store. "+
			"The prices range from $10 to $90. "+
			"Top picks are Sky Walker for $60 from live inventory and Court King for $90 from live inventory.",
		got,
	)
}
