package fetch

import (
	"fmt"
	"io"

	"golang.org/x/net/html"
)

// extractToken returns the value of the first input named __RequestVerificationToken.
func extractToken(r io.Reader) (string, error) {
	doc, err := html.Parse(io.LimitReader(r, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("parse login page: %w", err)
	}

	var token string
	var traverse func(*html.Node) bool
	traverse = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "input" && getAttr(n, "name") == tokenField {
			token = getAttr(n, "value")
			return true
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if traverse(child) {
				return true
			}
		}
		return false
	}
	traverse(doc)

	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
