package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// NewRelicLogFormatter wraps a logrus.Formatter and forwards every entry to
// New Relic, including the entry's fields, which the stock nrlogrus formatter
// drops.
//
// Based off of: https://github.com/newrelic/go-agent/blob/f1942e10f0819e2c854d5d7289eb0dc1c52a00af/v3/integrations/logcontext-v2/nrlogrus/formatter.go
type NewRelicLogFormatter struct {
	app       *newrelic.Application
	formatter logrus.Formatter
}

func NewNewRelicLogFormatter(app *newrelic.Application, formatter logrus.Formatter) NewRelicLogFormatter {
	return NewRelicLogFormatter{
		app:       app,
		formatter: formatter,
	}
}

func (f NewRelicLogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	logData := newrelic.LogData{
		Severity: e.Level.String(),
		Message:  flattenEntry(e),
	}

	logBytes, err := f.formatter.Format(e)
	if err != nil {
		return nil, err
	}
	b := bytes.NewBuffer(bytes.TrimRight(logBytes, "\n"))

	var txn *newrelic.Transaction
	if e.Context != nil {
		txn = newrelic.FromContext(e.Context)
	}

	if txn != nil {
		txn.RecordLog(logData)
		err = newrelic.EnrichLog(b, newrelic.FromTxn(txn))
	} else {
		f.app.RecordLog(logData)
		err = newrelic.EnrichLog(b, newrelic.FromApp(f.app))
	}
	if err != nil {
		return nil, err
	}

	b.WriteString("\n")
	return b.Bytes(), nil
}

func flattenEntry(e *logrus.Entry) string {
	if len(e.Data) == 0 {
		return e.Message
	}

	errorString := "<nil>"
	extra := make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		if k != logrus.ErrorKey {
			extra[k] = v
			continue
		}
		if typed, ok := v.(error); ok {
			errorString = fmt.Sprintf("%q", typed.Error())
		}
	}

	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return e.Message
	}
	return fmt.Sprintf("message=%q, error=%s, data=%s", e.Message, errorString, extraJSON)
}
