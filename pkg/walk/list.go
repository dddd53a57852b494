package walk

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-delve/memviz/pkg/proc"
	"github.com/go-delve/memviz/service/api"
)

// LinkedList walks the singly linked list that starts at head, following
// the member linkField of each node, visiting at most maxNodes nodes.
// Head can be a node or a pointer to one.
//
// Each visited node is a child of the returned node with one child per
// name in fields, in order. A field that can not be read becomes an error
// node, the walk continues with the other fields and the next node.
//
// The AnnotationEnd annotation of the root says why the walk ended:
// EndNull for a nil link, EndCycle when a node is visited twice,
// EndInvalid when a link can not be followed, EndTruncated when maxNodes
// nodes were visited and the list continues. AnnotationNodes is the number
// of visited nodes.
func (w *Walker) LinkedList(head proc.Value, linkField string, fields []string, maxNodes int) *api.Node {
	n, _ := w.linkedList(head, linkField, fields, maxNodes)
	return n
}

func (w *Walker) linkedList(head proc.Value, linkField string, fields []string, maxNodes int) (*api.Node, *VisitSet) {
	visited := NewVisitSet()
	root := api.ConvertValue("list", head)

	cur := head
	switch typ := w.oracle.DescribeType(head); typ.Kind {
	case proc.KindPointer:
		cur = w.deref(head)
	case proc.KindComposite:
	default:
		if head.IsImmediate() {
			cur = w.deref(head)
		} else {
			cur = invalidValue(fmt.Errorf("%s is not a list node", typ))
		}
	}

	var end string
	count := 0
	for end == "" {
		label := fmt.Sprintf("[%d]", count)
		switch {
		case cur.Addr.IsInvalid():
			root.Append(invalidLeaf(label, cur.Addr))
			end = api.EndInvalid
		case cur.Addr.IsNull():
			root.Append(nullLeaf(label))
			end = api.EndNull
		case visited.Contains(cur.Addr.Raw):
			root.Append(cycleLeaf(label, cur.Addr, "cycle detected"))
			end = api.EndCycle
		case count >= maxNodes:
			root.Append(boundLeaf(label, api.BoundNodes, "list truncated"))
			end = api.EndTruncated
		default:
			visited.Insert(cur.Addr.Raw)
			count++
			root.Append(w.listNode(label, cur, fields))
			cur = w.link(cur, linkField)
		}
	}

	root.Annotate(api.AnnotationEnd, end)
	root.Annotate(api.AnnotationNodes, strconv.Itoa(count))
	w.log.Debugf("list at %s: %d nodes, end=%s", head.Addr, count, end)
	return root, visited
}

func (w *Walker) listNode(label string, v proc.Value, fields []string) *api.Node {
	n := api.ConvertValue(label, v)
	for _, field := range fields {
		m, err := w.oracle.Member(v, field)
		if err != nil {
			var ferr *proc.FieldError
			if errors.As(err, &ferr) && ferr.Err != nil {
				err = ferr.Err
			}
			n.Append(errorLeaf(field, proc.Address{}, err))
			continue
		}
		n.Append(w.leaf(field, m))
	}
	return n
}
