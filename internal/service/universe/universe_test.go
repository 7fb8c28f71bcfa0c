package universe

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickers_FileAndSymbols(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.tsv")
	content := "# symbol\tname\nSPY\tSPDR S&P 500\naapl\tApple\n\nSPY\tduplicate\nMSFT\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	u := New(path, []string{"AMC", "msft", " "})
	got, err := u.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "AAPL", "MSFT", "AMC"}, got)
}

func TestTickers_SymbolsOnly(t *testing.T) {
	got, err := New("", []string{"QQQ", "IWM", "QQQ"}).Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"QQQ", "IWM"}, got)
}

func TestTickers_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.tsv"), nil).Tickers(context.Background())
	assert.Error(t, err)

	_, err = New("", nil).Tickers(context.Background())
	assert.Error(t, err)
}
