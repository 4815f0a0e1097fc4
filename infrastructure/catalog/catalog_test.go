package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-triage/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		entities []domain.Entity
		wantLen  int
		wantErr  string
	}{
		{
			name: "valid entities",
			entities: []domain.Entity{
				{Name: "CreateOrder", FilePath: "order/CreateOrder.java"},
				{Name: "ValidateAddress"},
			},
			wantLen: 2,
		},
		{
			name:     "empty catalog is allowed",
			entities: nil,
			wantLen:  0,
		},
		{
			name:     "empty name",
			entities: []domain.Entity{{Name: "  "}},
			wantErr:  "empty value",
		},
		{
			name:     "case-insensitive duplicate",
			entities: []domain.Entity{{Name: "CreateOrder"}, {Name: "createorder"}},
			wantErr:  "duplicates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.entities)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, c.Len())
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c, err := New([]domain.Entity{
		{Name: "InvoiceService", FilePath: "billing/InvoiceService.java"},
		{Name: "École"},
	})
	require.NoError(t, err)

	e, ok := c.Lookup("invoiceservice")
	require.True(t, ok)
	assert.Equal(t, "InvoiceService", e.Name, "lookup returns the display name")
	assert.Equal(t, "billing/InvoiceService.java", e.FilePath)

	assert.True(t, c.Contains("éCOLE"), "folding is Unicode aware")
	assert.False(t, c.Contains("InvoiceServiceImpl"))

	var nilCatalog *Catalog
	assert.False(t, nilCatalog.Contains("anything"))
	assert.Zero(t, nilCatalog.Len())
}

func TestCatalog_EntitiesIsACopy(t *testing.T) {
	c, err := FromNames("A", "B")
	require.NoError(t, err)

	got := c.Entities()
	got[0].Name = "mutated"
	assert.True(t, c.Contains("A"))
	assert.Equal(t, "A", c.Entities()[0].Name)
}

func TestLoad(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		doc := `
entities:
  - name: CreateOrder
    file_path: src/order/CreateOrder.java
    description: Creates a sales order from a cart.
  - name: ValidateAddress
    file_path: src/address/ValidateAddress.java
`
		c, err := Load(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, 2, c.Len())

		e, ok := c.Lookup("validateaddress")
		require.True(t, ok)
		assert.Equal(t, "src/address/ValidateAddress.java", e.FilePath)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := Load(strings.NewReader("entities:\n  - name: A\n    path: x\n"))
		assert.Error(t, err)
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		_, err := Load(strings.NewReader("entities:\n  - file_path: x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("empty document", func(t *testing.T) {
		c, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		assert.Zero(t, c.Len())
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - name: CreateOrder\n"), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, c.Contains("CreateOrder"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalog_ConcurrentReaders(t *testing.T) {
	c, err := FromNames("CreateOrder", "ValidateAddress", "InvoiceService")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.True(t, c.Contains("createorder"))
			}
		}()
	}
	wg.Wait()
}
