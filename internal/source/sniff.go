package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/finstate/internal/model"
)

// sniffLimit bounds how much of a filing is tokenized; the inline XBRL
// header with the dei facts sits near the top.
const sniffLimit = 256 << 10

// dei facts carried by every inline XBRL filing
const (
	factCIK    = "dei:entitycentralindexkey"
	factYear   = "dei:documentfiscalyearfocus"
	factTicker = "dei:tradingsymbol"
)

// SniffFile reads the head of a filing and returns the metadata found in its
// inline XBRL facts. A file without facts yields empty metadata, not an error.
func SniffFile(path string) (model.DocumentMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.DocumentMeta{}, fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()

	meta := Sniff(io.LimitReader(f, sniffLimit))
	return meta, nil
}

// Sniff scans HTML for dei:EntityCentralIndexKey, dei:DocumentFiscalYearFocus
// and dei:TradingSymbol facts.
func Sniff(r io.Reader) model.DocumentMeta {
	var meta model.DocumentMeta
	z := html.NewTokenizer(r)

	for {
		switch z.Next() {
		case html.ErrorToken:
			return finish(meta)
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr || string(name) != "ix:nonnumeric" {
				continue
			}
			fact := factName(z)
			if fact == "" {
				continue
			}
			value := strings.TrimSpace(innerText(z))
			switch fact {
			case factCIK:
				if meta.CIK == "" {
					meta.CIK = value
				}
			case factYear:
				if meta.Year == "" {
					meta.Year = value
				}
			case factTicker:
				if meta.Ticker == "" {
					meta.Ticker = value
				}
			}
			if meta.CIK != "" && meta.Year != "" && meta.Ticker != "" {
				return finish(meta)
			}
		}
	}
}

func finish(meta model.DocumentMeta) model.DocumentMeta {
	if !meta.IsEmpty() {
		meta.Source = model.MetaSourceDocument
	}
	return meta
}

func factName(z *html.Tokenizer) string {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "name" {
			return strings.ToLower(string(val))
		}
		if !more {
			return ""
		}
	}
}

// voidElements never have an end tag
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// innerText collects text up to the end of the current element
func innerText(z *html.Tokenizer) string {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if !voidElements[string(name)] {
				depth++
			}
		case html.EndTagToken:
			depth--
		case html.TextToken:
			b.Write(z.Text())
		}
	}
	return b.String()
}
