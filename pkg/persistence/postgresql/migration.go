package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE wallets (
				user_id VARCHAR(255) PRIMARY KEY,
				balance NUMERIC(24, 0) NOT NULL DEFAULT 0 CHECK (balance >= 0),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE transactions (
				id UUID PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL CHECK (type IN ('payment', 'subscription', 'transfer', 'withdrawal', 'deposit')),
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
				amount NUMERIC(24, 0) NOT NULL CHECK (amount > 0),
				description TEXT NOT NULL DEFAULT '',
				recipient_id VARCHAR(255),
				gateway_ref VARCHAR(255),
				execution_id VARCHAR(64) NOT NULL,
				metadata JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_transactions_user_id ON transactions(user_id);
			CREATE INDEX idx_transactions_execution_id ON transactions(execution_id);
			CREATE INDEX idx_transactions_created_at ON transactions(created_at);
		`,
		2: `
			CREATE TABLE subscriptions (
				id UUID PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				plan VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'active', 'expired')),
				price NUMERIC(24, 0) NOT NULL,
				auto_renew BOOLEAN NOT NULL DEFAULT true,
				starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_subscriptions_user_id ON subscriptions(user_id);
			CREATE INDEX idx_subscriptions_due ON subscriptions(status, auto_renew, ends_at);
		`,
	}
}
