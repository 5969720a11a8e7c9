package http

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/taxiportal/internal/core/domain"
	"github.com/samirrijal/taxiportal/internal/core/ports"
)

// plain converts a value to maps and slices through its JSON form so the
// default resolvers see the same field names as the REST API.
func plain(v any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func requireSession(p graphql.ResolveParams) (ports.Session, error) {
	s, ok := sessionFromContext(p.Context)
	if !ok {
		return ports.Session{}, fmt.Errorf("%w: authentication required", domain.ErrUnauthorized)
	}
	return s, nil
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"address":  &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
			"category": &graphql.Field{Type: graphql.String},
			"distance": &graphql.Field{Type: graphql.Float},
		},
	})

	stopType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReservationStop",
		Fields: graphql.Fields{
			"type":         &graphql.Field{Type: graphql.String},
			"address":      &graphql.Field{Type: graphql.String},
			"latitude":     &graphql.Field{Type: graphql.Float},
			"longitude":    &graphql.Field{Type: graphql.Float},
			"terminal":     &graphql.Field{Type: graphql.String},
			"flightNumber": &graphql.Field{Type: graphql.String},
			"flightOrigin": &graphql.Field{Type: graphql.String},
		},
	})

	reservationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Reservation",
		Fields: graphql.Fields{
			"id":                   &graphql.Field{Type: graphql.String},
			"booking_id":           &graphql.Field{Type: graphql.String},
			"booking_date":         &graphql.Field{Type: graphql.String},
			"pickup_address":       &graphql.Field{Type: stopType},
			"destination_address":  &graphql.Field{Type: stopType},
			"passengers":           &graphql.Field{Type: graphql.Int},
			"child_seat":           &graphql.Field{Type: graphql.Boolean},
			"vehicle_5_6":          &graphql.Field{Type: graphql.Boolean},
			"vehicle_7":            &graphql.Field{Type: graphql.Boolean},
			"special_instructions": &graphql.Field{Type: graphql.String},
			"status":               &graphql.Field{Type: graphql.String},
			"display_status":       &graphql.Field{Type: graphql.String},
			"can_cancel":           &graphql.Field{Type: graphql.Boolean},
			"created_at":           &graphql.Field{Type: graphql.String},
			"cancelled_at":         &graphql.Field{Type: graphql.String},
		},
	})

	paginationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Pagination",
		Fields: graphql.Fields{
			"page":        &graphql.Field{Type: graphql.Int},
			"limit":       &graphql.Field{Type: graphql.Int},
			"total_items": &graphql.Field{Type: graphql.Int},
			"total_pages": &graphql.Field{Type: graphql.Int},
		},
	})

	reservationPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReservationPage",
		Fields: graphql.Fields{
			"data":       &graphql.Field{Type: graphql.NewList(reservationType)},
			"pagination": &graphql.Field{Type: paginationType},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ReservationStats",
		Fields: graphql.Fields{
			"upcoming":  &graphql.Field{Type: graphql.Int},
			"today":     &graphql.Field{Type: graphql.Int},
			"completed": &graphql.Field{Type: graphql.Int},
			"total":     &graphql.Field{Type: graphql.Int},
		},
	})

	activityType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Activity",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"type":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"created_at":  &graphql.Field{Type: graphql.String},
		},
	})

	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"email":              &graphql.Field{Type: graphql.String},
			"name":               &graphql.Field{Type: graphql.String},
			"phone":              &graphql.Field{Type: graphql.String},
			"two_factor_enabled": &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me": &graphql.Field{
				Type:        userType,
				Description: "The authenticated user",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return plain(deps.Auth.Me(p.Context, s.UserID))
				},
			},
			"locations": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "Predefined pickup and destination places",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return plain(deps.Locations.ListPredefined(p.Context))
				},
			},
			"searchLocations": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "Search predefined places by name or address",
				Args: graphql.FieldConfigArgument{
					"query": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					q := p.Args["query"].(string)
					limit := p.Args["limit"].(int)
					return plain(deps.Locations.SearchPredefined(p.Context, q, nil, limit))
				},
			},
			"reservations": &graphql.Field{
				Type:        reservationPageType,
				Description: "A page of the user's reservations",
				Args: graphql.FieldConfigArgument{
					"filter": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: string(domain.FilterAll)},
					"page":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 10},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					filter := domain.ParseReservationFilter(p.Args["filter"].(string))
					return plain(deps.Reservations.List(p.Context, s.UserID, filter, p.Args["page"].(int), p.Args["limit"].(int)))
				},
			},
			"reservation": &graphql.Field{
				Type:        reservationType,
				Description: "One reservation by booking ID",
				Args: graphql.FieldConfigArgument{
					"booking_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return plain(deps.Reservations.Get(p.Context, s.UserID, p.Args["booking_id"].(string)))
				},
			},
			"stats": &graphql.Field{
				Type:        statsType,
				Description: "Dashboard counters",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return plain(deps.Reservations.Stats(p.Context, s.UserID))
				},
			},
			"activities": &graphql.Field{
				Type:        graphql.NewList(activityType),
				Description: "Recent account activity",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 15},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := requireSession(p)
					if err != nil {
						return nil, err
					}
					return plain(deps.Activities.List(p.Context, s.UserID, p.Args["limit"].(int), p.Args["offset"].(int)))
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
