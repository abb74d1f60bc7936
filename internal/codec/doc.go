// Package codec exports binding tables, such as the reconciler's Known
// State, as JSON or YAML.
package codec
