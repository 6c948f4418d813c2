package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/campusaid/aidmap/internal/core/domain"
	"github.com/campusaid/aidmap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	geoPointInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "GeoPointInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	boundsInput := graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "BoundsInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"min_lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"min_lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"max_lat": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			"max_lon": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
		},
	})

	requestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Request",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"title":           &graphql.Field{Type: graphql.String},
			"description":     &graphql.Field{Type: graphql.String},
			"types":           &graphql.Field{Type: graphql.NewList(graphql.String)},
			"tags":            &graphql.Field{Type: graphql.NewList(graphql.String)},
			"location":        &graphql.Field{Type: geoPointType},
			"location_name":   &graphql.Field{Type: graphql.String},
			"status":          &graphql.Field{Type: graphql.String},
			"start_time":      &graphql.Field{Type: graphql.String},
			"expiration_time": &graphql.Field{Type: graphql.String},
			"people":          &graphql.Field{Type: graphql.NewList(graphql.String)},
			"creator_id":      &graphql.Field{Type: graphql.String},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"center":              &graphql.Field{Type: geoPointType},
			"count":               &graphql.Field{Type: graphql.Int},
			"request_ids":         &graphql.Field{Type: graphql.NewList(graphql.String)},
			"at_current_location": &graphql.Field{Type: graphql.Boolean},
			"tap_zoom":            &graphql.Field{Type: graphql.Float},
		},
	})

	clusterViewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ClusterView",
		Fields: graphql.Fields{
			"zoom":                  &graphql.Field{Type: graphql.Float},
			"radius_meters":         &graphql.Field{Type: graphql.Float},
			"markers":               &graphql.Field{Type: graphql.NewList(markerType)},
			"total_requests":        &graphql.Field{Type: graphql.Int},
			"show_current_location": &graphql.Field{Type: graphql.Boolean},
		},
	})

	radiusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Radius",
		Fields: graphql.Fields{
			"zoom":                           &graphql.Field{Type: graphql.Float},
			"tier":                           &graphql.Field{Type: graphql.String},
			"cluster_radius_meters":          &graphql.Field{Type: graphql.Float},
			"current_location_radius_meters": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"request": &graphql.Field{
				Type:        requestType,
				Description: "A single request by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					req, err := deps.Requests.Get(p.Context, id)
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return requestToMap(*req), nil
				},
			},
			"requests": &graphql.Field{
				Type:        graphql.NewList(requestType),
				Description: "Requests visible to a user",
				Args: graphql.FieldConfigArgument{
					"user_id":     &graphql.ArgumentConfig{Type: graphql.String},
					"ownership":   &graphql.ArgumentConfig{Type: graphql.String},
					"active_only": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: true},
					"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultPageLimit},
					"offset":      &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ownership, err := argOwnership(p.Args)
					if err != nil {
						return nil, err
					}
					userID, _ := p.Args["user_id"].(string)
					activeOnly, _ := p.Args["active_only"].(bool)
					limit, _ := p.Args["limit"].(int)
					offset, _ := p.Args["offset"].(int)

					reqs, err := deps.Requests.List(p.Context, usecases.ListRequestsInput{
						UserID:     userID,
						Ownership:  ownership,
						ActiveOnly: activeOnly,
						Limit:      limit,
						Offset:     offset,
					})
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, len(reqs))
					for i, r := range reqs {
						out[i] = requestToMap(r)
					}
					return out, nil
				},
			},
			"clusters": &graphql.Field{
				Type:        clusterViewType,
				Description: "Map markers for one camera state",
				Args: graphql.FieldConfigArgument{
					"zoom":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"bounds":           &graphql.ArgumentConfig{Type: boundsInput},
					"current_location": &graphql.ArgumentConfig{Type: geoPointInput},
					"user_id":          &graphql.ArgumentConfig{Type: graphql.String},
					"ownership":        &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ownership, err := argOwnership(p.Args)
					if err != nil {
						return nil, err
					}
					zoom, _ := p.Args["zoom"].(float64)
					userID, _ := p.Args["user_id"].(string)

					q := usecases.ClusterQuery{Zoom: zoom, UserID: userID, Ownership: ownership}
					if m, ok := p.Args["bounds"].(map[string]interface{}); ok {
						b := domain.Bounds{
							MinLat: argFloat(m, "min_lat"),
							MinLon: argFloat(m, "min_lon"),
							MaxLat: argFloat(m, "max_lat"),
							MaxLon: argFloat(m, "max_lon"),
						}
						if !b.Valid() {
							return nil, errors.New("bounds out of range")
						}
						q.Bounds = &b
					}
					if m, ok := p.Args["current_location"].(map[string]interface{}); ok {
						pt := domain.GeoPoint{Lat: argFloat(m, "lat"), Lon: argFloat(m, "lon")}
						q.CurrentLocation = &pt
					}
					return deps.Map.Clusters(p.Context, q)
				},
			},
			"radius": &graphql.Field{
				Type:        radiusType,
				Description: "Clustering radii at a zoom level",
				Args: graphql.FieldConfigArgument{
					"zoom": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					zoom, _ := p.Args["zoom"].(float64)
					return deps.Map.Radius(zoom), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func argOwnership(args map[string]interface{}) (domain.RequestOwnership, error) {
	raw, _ := args["ownership"].(string)
	o, ok := domain.ParseOwnership(raw)
	if !ok {
		return "", errors.New("unknown ownership " + raw)
	}
	return o, nil
}

// argFloat reads a Float input field; graphql-go hands integer literals
// over as int.
func argFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// requestToMap flattens a request into plain scalars for the default resolver.
func requestToMap(r domain.Request) map[string]interface{} {
	types := make([]string, len(r.Types))
	for i, t := range r.Types {
		types[i] = string(t)
	}
	tags := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		tags[i] = string(t)
	}
	return map[string]interface{}{
		"id":              r.ID,
		"title":           r.Title,
		"description":     r.Description,
		"types":           types,
		"tags":            tags,
		"location":        map[string]interface{}{"lat": r.Location.Lat, "lon": r.Location.Lon},
		"location_name":   r.LocationName,
		"status":          string(r.Status),
		"start_time":      r.StartTime.Format(time.RFC3339),
		"expiration_time": r.ExpirationTime.Format(time.RFC3339),
		"people":          r.People,
		"creator_id":      r.CreatorID,
	}
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
		if err := c.BodyParser(&req); err != nil {
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
