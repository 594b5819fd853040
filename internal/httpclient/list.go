package httpclient

import (
	"context"
	"net/http"

	"github.com/cyp0633/davdiscover/internal/protocol"
	"github.com/cyp0633/davdiscover/internal/xml"
	"github.com/cyp0633/davdiscover/internal/xml/props"
)

// ListFlags select what List asks the server for
type ListFlags uint32

const (
	// ListOnlyCalendar and ListOnlyAddressbook limit the request to the
	// properties of one collection type. Neither set means both.
	ListOnlyCalendar ListFlags = 1 << iota
	ListOnlyAddressbook
	ListSupports
	ListETag
	ListDisplayName
	ListContentType
	ListContentLength
	ListCreationDate
	ListLastModified
	ListDescription
	ListColor
	ListOrder
)

const ListAll = ListSupports | ListETag | ListDisplayName | ListContentType | ListContentLength |
	ListCreationDate | ListLastModified | ListDescription | ListColor | ListOrder

func listRequest(flags ListFlags) *xml.PropfindRequest {
	calendarProps := flags&ListOnlyCalendar != 0
	addressbookProps := flags&ListOnlyAddressbook != 0
	if !calendarProps && !addressbookProps {
		calendarProps, addressbookProps = true, true
	}

	req := xml.NewPropfindRequest(xml.PropResourceType)
	if calendarProps {
		req.Add(xml.PropSource)
		if flags&ListSupports != 0 {
			req.Add(xml.PropSupportedComponents)
		}
	}
	if flags&ListDisplayName != 0 {
		req.Add(xml.PropDisplayName)
	}
	if flags&ListETag != 0 {
		req.Add(xml.PropGetETag)
		if calendarProps {
			req.Add(xml.PropGetCTag)
		}
	}
	if flags&ListContentType != 0 {
		req.Add(xml.PropGetContentType)
	}
	if flags&ListContentLength != 0 {
		req.Add(xml.PropGetContentLength)
	}
	if flags&ListCreationDate != 0 {
		req.Add(xml.PropCreationDate)
	}
	if flags&ListLastModified != 0 {
		req.Add(xml.PropGetLastModified)
	}
	if flags&ListDescription != 0 {
		if calendarProps {
			req.Add(xml.PropCalendarDescription)
		}
		if addressbookProps {
			req.Add(xml.PropAddressbookDesc)
		}
	}
	if calendarProps {
		if flags&ListColor != 0 {
			req.Add(xml.PropCalendarColor)
		}
		if flags&ListOrder != 0 {
			req.Add(xml.PropCalendarOrder)
		}
	}
	return req
}

// List reads the resources at url. Only 200 propstats produce resources;
// the result is in server order.
func (w *httpClientWrapper) List(ctx context.Context, urlStr string, depth Depth, flags ListFlags) ([]protocol.Resource, error) {
	var resources []protocol.Resource

	visitor := xml.VisitorFuncs{
		VisitFunc: func(ps *xml.Propstat) bool {
			if ps.Status != http.StatusOK || ps.Prop == nil {
				return true
			}
			if res, ok := props.ListResource(ps); ok {
				resources = append(resources, res)
			}
			return true
		},
	}
	if err := w.DoPROPFIND(ctx, urlStr, depth, listRequest(flags), visitor); err != nil {
		return nil, err
	}

	if flags&ListDisplayName != 0 {
		for i := range resources {
			if resources[i].DisplayName == "" {
				resources[i].DisplayName = props.CompleteDisplayName(resources[i].Href)
			}
		}
	}

	w.logger.Debug("list complete",
		"url", urlStr,
		"depth", depth,
		"resources", len(resources))
	return resources, nil
}
