package busfacade

import "encoding/xml"

// introspectNode mirrors the subset of the standard D-Bus introspection
// XML schema this package cares about: the child <node> elements under
// the introspected path.
type introspectNode struct {
	Nodes []struct {
		Name string `xml:"name,attr"`
	} `xml:"node"`
}

// parseIntrospectChildren extracts immediate child node names from an
// Introspect() XML document. Malformed XML yields no children rather than
// an error, since introspection is advisory (used only to enumerate GATT
// children, never to drive a state transition).
func parseIntrospectChildren(doc string) []string {
	var n introspectNode
	if err := xml.Unmarshal([]byte(doc), &n); err != nil {
		return nil
	}
	names := make([]string, 0, len(n.Nodes))
	for _, node := range n.Nodes {
		if node.Name != "" {
			names = append(names, node.Name)
		}
	}
	return names
}
