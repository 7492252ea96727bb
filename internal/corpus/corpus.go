// Package corpus holds the static document set the ingestion job indexes.
package corpus

import "fmt"

// Document is one corpus entry. Immutable once defined.
type Document struct {
	ID       string
	Text     string
	Category string
}

// Categories present in the corpus.
const (
	CategoryDocker = "Docker"
	CategoryPython = "Python"
	CategoryAWS    = "AWS"
)

var tips = []struct {
	text     string
	category string
}{
	{"Use Docker multi-stage builds to reduce image size by separating build and runtime dependencies.", CategoryDocker},
	{"Leverage Python's context managers with 'with' statements to ensure proper resource cleanup and exception handling.", CategoryPython},
	{"Configure AWS Lambda with appropriate memory allocation - more memory also increases CPU proportionally.", CategoryAWS},
	{"Use Docker Compose for local development to orchestrate multiple containers and manage dependencies easily.", CategoryDocker},
	{"Implement async/await in Python for I/O-bound operations to improve concurrency and performance.", CategoryPython},
	{"Set up AWS CloudWatch alarms to monitor Lambda function errors, duration, and throttles proactively.", CategoryAWS},
	{"Optimize Docker images by using .dockerignore to exclude unnecessary files and reduce build context size.", CategoryDocker},
	{"Use Python's dataclasses or Pydantic models for type-safe data validation and serialization in APIs.", CategoryPython},
	{"Implement AWS S3 lifecycle policies to automatically transition objects to cheaper storage classes over time.", CategoryAWS},
	{"Use Docker health checks to ensure containers are running correctly and enable automatic restart on failure.", CategoryDocker},
	{"Leverage Python's type hints with mypy for static type checking to catch errors before runtime.", CategoryPython},
	{"Configure AWS VPC endpoints for private connectivity to S3 and other services without internet gateway.", CategoryAWS},
	{"Use Docker volumes for persistent data storage that survives container restarts and updates.", CategoryDocker},
	{"Implement Python logging with proper levels (DEBUG, INFO, WARNING, ERROR) for better observability.", CategoryPython},
	{"Use AWS IAM roles instead of access keys for EC2 instances and Lambda functions for better security.", CategoryAWS},
	{"Leverage Docker layer caching by ordering Dockerfile commands from least to most frequently changing.", CategoryDocker},
	{"Use Python's pathlib instead of os.path for more readable and cross-platform file path operations.", CategoryPython},
	{"Implement AWS CloudFormation or Terraform for Infrastructure as Code to version control your infrastructure.", CategoryAWS},
	{"Use Docker secrets management for sensitive data like API keys instead of hardcoding them in images.", CategoryDocker},
	{"Leverage Python's functools.lru_cache decorator for memoization to cache expensive function results.", CategoryPython},
}

// Documents returns a fresh copy of the corpus with ids doc_0..doc_N-1.
func Documents() []Document {
	docs := make([]Document, len(tips))
	for i, t := range tips {
		docs[i] = Document{
			ID:       fmt.Sprintf("doc_%d", i),
			Text:     t.text,
			Category: t.category,
		}
	}
	return docs
}
