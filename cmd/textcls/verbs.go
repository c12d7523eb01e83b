package main

import (
	"github.com/cognicore/textcls/pkg/textcls/annotate"
	"github.com/cognicore/textcls/pkg/textcls/classify"
	"github.com/cognicore/textcls/pkg/textcls/extract"
	"github.com/cognicore/textcls/pkg/textcls/load"
	"github.com/cognicore/textcls/pkg/textcls/report"
	"github.com/cognicore/textcls/pkg/textcls/stage"
	"github.com/cognicore/textcls/pkg/textcls/transform"
)

// registry lists every verb the binary offers.
func registry() *stage.Registry {
	reg := stage.NewRegistry()
	reg.MustRegister(
		stage.Define("extract-file", "extract",
			"Extract records from a local file or archive",
			extract.DefaultFileOptions, extract.NewFileStage),
		stage.Define("extract-web", "extract",
			"Download a URL and extract records from it",
			extract.DefaultWebOptions, extract.NewWebStage),

		stage.Define("tokenize", "transform",
			"Tokenize text features into a classifier-ready table",
			transform.DefaultTokenizeOptions, transform.NewTokenizeStage),
		stage.Define("select", "transform",
			"Keep the named features in the given order",
			transform.DefaultSelectOptions, transform.NewSelectStage),

		stage.Define("split", "load",
			"Split records into training and test files",
			load.DefaultSplitOptions, load.NewSplitStage),

		stage.Define("classify-stanford", "classify",
			"Train and test the Stanford ColumnDataClassifier",
			classify.DefaultStanfordOptions, classify.NewStanfordStage),

		stage.Define("report-accuracy", "report",
			"Per-class precision, recall and F1 of a classifier run",
			report.DefaultRunOptions, report.NewAccuracyStage),
		stage.Define("report-confusion", "report",
			"Gold by predicted confusion matrix of a classifier run",
			report.DefaultRunOptions, report.NewConfusionStage),
		stage.Define("report-folds", "report",
			"Per-fold F1 of a cross-validated run",
			report.DefaultRunOptions, report.NewFoldsStage),
		stage.Define("report-runs", "report",
			"List the runs recorded in a ledger",
			report.DefaultRunsOptions, report.NewRunsStage),
		stage.Define("report-terms", "report",
			"Terms most associated with each class by NPMI",
			report.DefaultTermsOptions, report.NewTermsStage),

		stage.Define("annotate", "annotate",
			"Label unlabeled records at the terminal",
			annotate.DefaultAnnotateOptions, annotate.NewAnnotateStage),
	)
	return reg
}
