package service

import "context"

type testTxRepos struct {
	sessions SessionRepositoryInterface
	messages MessageRepositoryInterface
	leads    LeadRepositoryInterface
}

func (t *testTxRepos) Sessions() SessionRepositoryInterface {
	return t.sessions
}

func (t *testTxRepos) Messages() MessageRepositoryInterface {
	return t.messages
}

func (t *testTxRepos) Leads() LeadRepositoryInterface {
	return t.leads
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}
