// Package ssm stores plain and SecureString values in SSM Parameter Store.
package ssm
