// Package secretsmanager creates, updates and reads string secrets in AWS
// Secrets Manager.
package secretsmanager
