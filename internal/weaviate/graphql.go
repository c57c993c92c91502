package weaviate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate/entities/models"

	"github.com/renderinc/issue-sync/internal/store"
)

func graphQLError(resp *models.GraphQLResponse) error {
	if resp == nil || len(resp.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		msgs = append(msgs, e.Message)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// parseGet reads Get.<class>[] entries into objects, taking the id from _additional.
func parseGet(resp *models.GraphQLResponse, class string) ([]store.Object, error) {
	get, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected Get response")
	}
	items, _ := get[className(class)].([]any)

	objects := make([]store.Object, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		obj := store.Object{Properties: map[string]any{}}
		for k, v := range fields {
			if k == "_additional" {
				if extra, ok := v.(map[string]any); ok {
					obj.ID, _ = extra["id"].(string)
				}
				continue
			}
			if v != nil {
				obj.Properties[k] = v
			}
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// parseCount reads Aggregate.<class>[0].meta.count.
func parseCount(resp *models.GraphQLResponse, class string) (int, error) {
	agg, ok := resp.Data["Aggregate"].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected Aggregate response")
	}
	groups, _ := agg[className(class)].([]any)
	if len(groups) == 0 {
		return 0, nil
	}
	group, _ := groups[0].(map[string]any)
	meta, _ := group["meta"].(map[string]any)
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing meta count for %s", class)
	}
	return int(count), nil
}
