package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/fetc/proposals/core"
	"github.com/fetc/proposals/core/proposal"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// ProposalQuery holds the query parameters of proposal listings.
type ProposalQuery struct {
	Search   string   `query:"search"`
	Statuses []string `query:"status"`
	// Mine limits committee members to the proposals they take part in.
	Mine bool `query:"mine"`
}

func (q ProposalQuery) Filter(userID string, ordering Ordering) proposal.Filter {
	filter := proposal.Filter{
		Search:   core.CleanString(q.Search),
		Ordering: ordering.Orderings,
		Statuses: lo.Map(lo.Compact(q.Statuses), func(s string, _ int) proposal.Status { return proposal.Status(s) }),
	}
	if q.Mine {
		filter.UserID = userID
	}
	return filter
}
